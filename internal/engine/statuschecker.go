package engine

import (
	"context"
	"time"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/wecom"
)

// RunStatusCheck executes one full status-checker tick (spec §4.8): for
// every approval currently in the active index, re-fetch its detail in
// status-check mode (wider concurrency, no retry), and either refresh
// its LastChecked timestamp (status unchanged) or apply the status change
// to the leave store and drop it from the active index (status became
// terminal) or update its tracked status in place (a non-terminal status
// that differs from the stored one). Only the status code is compared;
// other upstream edits to an approval are not detected here.
func (e *Engine) RunStatusCheck(ctx context.Context) {
	doc := e.active.Load()
	if len(doc.Approvals) == 0 {
		e.log.Debug().Msg("status check skipped: active index is empty")
		return
	}

	if !e.lock.Acquire() {
		e.log.Debug().Msg("status check skipped: sync lock held")
		return
	}
	defer e.lock.Release()

	e.client.InvalidateNameCaches()

	spNos := make([]string, 0, len(doc.Approvals))
	for spNo := range doc.Approvals {
		spNos = append(spNos, spNo)
	}

	details, err := e.client.FetchDetails(ctx, spNos, wecom.StatusCheckMode)
	if err != nil && len(details) == 0 {
		e.log.Error().Err(err).Msg("status check: detail fetch failed entirely")
		return
	}

	batch := domain.NewBatch()
	now := time.Now()
	changed := false

	for _, detail := range details {
		rec, tracked := doc.Approvals[detail.SpNo]
		if !tracked {
			continue
		}
		status, ok := domain.StatusFromCode(detail.SpStatus)
		if !ok {
			continue
		}

		if status == rec.CurrentStatus {
			rec.LastChecked = now
			rec.LastCheckedTime = now.UTC().Format(time.RFC3339)
			continue
		}

		changed = true
		// Use the stored leaveDates, not a fresh re-derivation from detail's
		// apply_data (spec §4.8 step 4): the record is already tracked, so
		// its slots are known-good even if the fresh detail's vacation block
		// comes back empty or different.
		applyStoredSlotsToBatch(batch, rec, status)

		if status.IsTerminal() {
			delete(doc.Approvals, detail.SpNo)
			continue
		}

		rec.CurrentStatus = status
		rec.StatusText = status.Text()
		rec.LastChecked = now
		rec.LastCheckedTime = now.UTC().Format(time.RFC3339)
	}

	if changed {
		if _, err := e.mergeAndPersist(batch); err != nil {
			e.log.Error().Err(err).Msg("status check: merge/persist failed")
			return
		}
	}

	if err := e.active.Save(doc); err != nil {
		e.log.Error().Err(err).Msg("status check: active index persist failed")
		return
	}

	e.log.Info().Int("checked", len(details)).Bool("changed", changed).Msg("status check complete")
}
