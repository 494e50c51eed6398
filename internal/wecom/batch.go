package wecom

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
)

// FetchMode selects one of the two concurrency/backoff profiles spec §4.2
// and §4.10 assign to detail fetching: the poller's bulk catch-up versus the
// status checker's narrow re-poll of already-known pending approvals. This
// is the adapted form of the teacher's microbatch package: rather than a
// streaming Submit API batching arbitrary jobs by size/time, the windows
// here are fixed (one wave of N concurrent detail fetches at a time) because
// the full job list — the sp_no slice — is always known up front.
type FetchMode int

const (
	// BulkMode is used by the incremental poller: narrower concurrency, an
	// adaptive inter-wave delay, and exponential backoff on 45009.
	BulkMode FetchMode = iota
	// StatusCheckMode is used by the status checker: wider concurrency,
	// a fixed inter-wave delay, and no retry — a stale status this tick is
	// picked up again next tick.
	StatusCheckMode
)

const (
	bulkConcurrency   = 3
	bulkDelayMin      = 100 * time.Millisecond
	bulkDelayMax      = 500 * time.Millisecond
	statusConcurrency = 5
	statusDelay       = 50 * time.Millisecond
)

// FetchDetails fetches approvalDetail for every spNo, in fixed-size
// concurrent waves sized per mode. A single sp_no's failure is logged and
// does not abort the rest of the batch; an error is returned only when no
// fetch succeeded, so a partial result comes back with a nil error.
func (c *Client) FetchDetails(ctx context.Context, spNos []string, mode FetchMode) ([]*ApprovalInfo, error) {
	concurrency := statusConcurrency
	if mode == BulkMode {
		concurrency = bulkConcurrency
	}

	var (
		mu       sync.Mutex
		results  = make([]*ApprovalInfo, 0, len(spNos))
		delay    = bulkDelayMin
		firstErr error
	)

	for start := 0; start < len(spNos); start += concurrency {
		end := start + concurrency
		if end > len(spNos) {
			end = len(spNos)
		}
		wave := spNos[start:end]

		var wg sync.WaitGroup
		waveHitRateLimit := false
		for _, spNo := range wave {
			wg.Add(1)
			go func(spNo string) {
				defer wg.Done()
				info, err := c.fetchDetailWithRetry(ctx, spNo, mode)
				if err != nil {
					var domErr *domain.Error
					if errors.As(err, &domErr) && domErr.Code == domain.CodeRateLimit {
						mu.Lock()
						waveHitRateLimit = true
						mu.Unlock()
					}
					c.log.Warn().Err(err).Str("sp_no", spNo).Msg("approval detail fetch failed")
					mu.Lock()
					if firstErr == nil {
						firstErr = err
					}
					mu.Unlock()
					return
				}
				mu.Lock()
				results = append(results, info)
				mu.Unlock()
			}(spNo)
		}
		wg.Wait()

		if end >= len(spNos) {
			break
		}

		if mode == BulkMode {
			if waveHitRateLimit {
				delay *= 2
				if delay > bulkDelayMax {
					delay = bulkDelayMax
				}
			} else if delay > bulkDelayMin {
				delay -= 50 * time.Millisecond
				if delay < bulkDelayMin {
					delay = bulkDelayMin
				}
			}
		} else {
			delay = statusDelay
		}

		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-time.After(delay):
		}
	}

	if len(results) == 0 && firstErr != nil {
		return results, firstErr
	}
	return results, nil
}

// fetchDetailWithRetry retries a single detail fetch on upstream rate
// limiting (errcode 45009), per spec §4.10's "2s, 4s, 8s, then give up"
// bulk-mode backoff schedule. Status-check mode never retries: a stale read
// this tick is corrected on the next tick anyway.
func (c *Client) fetchDetailWithRetry(ctx context.Context, spNo string, mode FetchMode) (*ApprovalInfo, error) {
	if mode != BulkMode {
		return c.approvalDetail(ctx, spNo)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 2 * time.Second
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 8 * time.Second
	bo.MaxElapsedTime = 0
	retries := backoff.WithMaxRetries(bo, 3)

	var info *ApprovalInfo
	op := func() error {
		var err error
		info, err = c.approvalDetail(ctx, spNo)
		if err == nil {
			return nil
		}
		var domErr *domain.Error
		if errors.As(err, &domErr) && domErr.Code == domain.CodeRateLimit {
			return err
		}
		return backoff.Permanent(err)
	}
	if err := backoff.Retry(op, backoff.WithContext(retries, ctx)); err != nil {
		return nil, err
	}
	return info, nil
}
