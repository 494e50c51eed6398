package wecom

import (
	"context"
	"time"
)

// ListApprovalsInRange lists every sp_no in [startUnix, endUnix], splitting
// the window into <=31-day chunks and pausing between them when more than
// one chunk is required (spec §4.2). This is the only entry point callers
// outside this package use for listing; it always respects the upstream
// range ceiling regardless of how wide a window is requested.
func (c *Client) ListApprovalsInRange(ctx context.Context, startUnix, endUnix int64) ([]string, error) {
	windows := SplitWindow(startUnix, endUnix)
	var all []string
	for i, w := range windows {
		spNos, err := c.listApprovals(ctx, w.Start, w.End)
		if err != nil {
			return all, err
		}
		all = append(all, spNos...)

		if i < len(windows)-1 {
			select {
			case <-ctx.Done():
				return all, ctx.Err()
			case <-time.After(WindowChunkPause()):
			}
		}
	}
	return all, nil
}

// ApprovalDetail fetches a single approval's detail. Exported wrapper
// around approvalDetail for callers that don't need batch fan-out (the
// callback dispatch path, engine.ProcessApproval).
func (c *Client) ApprovalDetail(ctx context.Context, spNo string) (*ApprovalInfo, error) {
	return c.approvalDetail(ctx, spNo)
}
