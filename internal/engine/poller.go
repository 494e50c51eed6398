package engine

import (
	"context"
	"time"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/wecom"
)

// RunIncrementalSync executes one full incremental-poller tick (spec §4.7):
// acquire the lock, compute the window since the last cursor, list and
// fetch every approval detail in it, merge leave-only Pending/Approved
// records into the leave store, seed the active index with anything still
// Pending, and advance the cursor only if the whole cycle succeeds.
func (e *Engine) RunIncrementalSync(ctx context.Context) {
	if !e.lock.Acquire() {
		e.log.Debug().Msg("incremental sync skipped: sync lock held")
		return
	}
	defer e.lock.Release()

	e.client.InvalidateNameCaches()

	cursor := e.cursor.Get()
	start := cursor.LastSyncEndTimestamp
	end := time.Now().Unix()
	if end <= start {
		e.log.Debug().Msg("incremental sync skipped: window is empty")
		return
	}

	spNos, err := e.client.ListApprovalsInRange(ctx, start, end)
	if err != nil {
		e.log.Error().Err(err).Msg("incremental sync: list approvals failed")
		_ = e.cursor.RecordFailure()
		return
	}

	details, err := e.client.FetchDetails(ctx, spNos, wecom.BulkMode)
	if err != nil && len(details) == 0 {
		e.log.Error().Err(err).Msg("incremental sync: detail fetch failed entirely")
		_ = e.cursor.RecordFailure()
		return
	}

	batch := domain.NewBatch()
	loc := e.cfg.Location()
	var pending []*wecom.ApprovalInfo
	for _, detail := range details {
		if detail.SpStatus != 1 && detail.SpStatus != 2 {
			// Only Pending (1) and Approved (2) are ever merged from the
			// poller per §4.7; other terminal statuses are left to the
			// status checker, which already tracks the approval.
			continue
		}
		if applyDetailToBatch(batch, e.client, detail, loc, e.log) {
			if detail.SpStatus == 1 {
				pending = append(pending, detail)
			}
		}
	}

	if _, err := e.mergeAndPersist(batch); err != nil {
		e.log.Error().Err(err).Msg("incremental sync: merge/persist failed")
		_ = e.cursor.RecordFailure()
		return
	}

	if err := e.seedActiveIndex(pending, loc); err != nil {
		e.log.Error().Err(err).Msg("incremental sync: active index persist failed")
		_ = e.cursor.RecordFailure()
		return
	}

	if err := e.cursor.AdvanceSuccess(end, len(details)); err != nil {
		e.log.Error().Err(err).Msg("incremental sync: cursor advance failed")
		return
	}

	e.log.Info().Int("approvals", len(details)).Int("pending", len(pending)).Msg("incremental sync complete")
}

// seedActiveIndex inserts an ApprovalRecord for every still-pending detail
// whose ApplyTime is at or after the index's cutoff (invariant I4); entries
// below cutoff are silently skipped rather than written and immediately
// dropped by Store.Save.
func (e *Engine) seedActiveIndex(pending []*wecom.ApprovalInfo, loc *time.Location) error {
	if len(pending) == 0 {
		return nil
	}
	doc := e.active.Load()
	cutoff := doc.Metadata.CutoffTimestamp
	now := time.Now()

	for _, detail := range pending {
		if detail.ApplyTime < cutoff {
			continue
		}
		userid := detail.ApplierUserID()
		att, ok := domain.FindVacationAttendance(detail.ApplyData.Contents)
		if !ok {
			continue
		}
		slots := domain.GenerateDateSlots(att, loc)
		status, _ := domain.StatusFromCode(detail.SpStatus)
		doc.Approvals[detail.SpNo] = &domain.ApprovalRecord{
			SpNo:            detail.SpNo,
			UserID:          userid,
			Name:            e.client.UserName(context.Background(), userid),
			ApplyTime:       detail.ApplyTime,
			SubmitTime:      detail.ApplyTime,
			CurrentStatus:   status,
			StatusText:      status.Text(),
			LeaveDates:      slots,
			LastChecked:     now,
			LastCheckedTime: now.UTC().Format(time.RFC3339),
		}
	}
	return e.active.Save(doc)
}
