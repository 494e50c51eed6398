package engine

import (
	"context"
	"time"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
)

// ProcessApproval handles a single approval event pushed by the callback
// handler (spec §4.9's Pending / Approved-fast-path / Approved-slow-path /
// other-terminal dispatch). It implements callback.Dispatcher.
//
// The detail is re-fetched for every event, since the pushed status is only
// a hint. The "fast path" for an already-tracked approval then applies the
// fetched status to the cached ApprovalRecord (userid, name, leave dates)
// instead of re-deriving slots from the detail; the "slow path" for an
// approval we haven't indexed yet derives slots from the fetched detail.
func (e *Engine) ProcessApproval(ctx context.Context, spNo string) error {
	if !e.lock.Acquire() {
		return domain.NewLockBusyError("sync lock held, deferring sp_no=%s", spNo)
	}
	defer e.lock.Release()

	doc := e.active.Load()
	rec, tracked := doc.Approvals[spNo]

	detail, err := e.client.ApprovalDetail(ctx, spNo)
	if err != nil {
		return err
	}
	if detail.SpName != "leave" && detail.SpName != "请假" {
		return nil
	}
	status, ok := domain.StatusFromCode(detail.SpStatus)
	if !ok {
		return nil
	}

	loc := e.cfg.Location()
	batch := domain.NewBatch()
	switch {
	case tracked && status != domain.StatusPending:
		// Fast path: we already know the userid and leave dates; flip the
		// cached status text rather than re-deriving slots from apply_data.
		applyStoredSlotsToBatch(batch, rec, status)

	case status.IsTerminal() && status != domain.StatusApproved:
		// Untracked terminal event other than Approved (spec §4.9): re-parse
		// slots from the fresh detail, but only if the employee is already
		// known to the leave store; otherwise this is a terminal event for
		// something we never tracked in the first place and must be skipped.
		userid := detail.ApplierUserID()
		if _, exists := e.leave.Load().EmployeeInfo[userid]; !exists {
			return nil
		}
		if !applyDetailToBatch(batch, e.client, detail, loc, e.log) {
			return nil
		}

	default:
		// Untracked Pending, or untracked Approved: transform and merge
		// normally, no existence check (spec §4.9).
		if !applyDetailToBatch(batch, e.client, detail, loc, e.log) {
			return nil
		}
	}

	if _, err := e.mergeAndPersist(batch); err != nil {
		return err
	}

	now := time.Now()
	switch {
	case status.IsTerminal():
		delete(doc.Approvals, spNo)
	case status == domain.StatusPending:
		if detail.ApplyTime >= doc.Metadata.CutoffTimestamp {
			userid := detail.ApplierUserID()
			att, ok := domain.FindVacationAttendance(detail.ApplyData.Contents)
			var slots []string
			if ok {
				slots = domain.GenerateDateSlots(att, loc)
			}
			doc.Approvals[spNo] = &domain.ApprovalRecord{
				SpNo:            spNo,
				UserID:          userid,
				Name:            e.client.UserName(ctx, userid),
				ApplyTime:       detail.ApplyTime,
				SubmitTime:      detail.ApplyTime,
				CurrentStatus:   status,
				StatusText:      status.Text(),
				LeaveDates:      slots,
				LastChecked:     now,
				LastCheckedTime: now.UTC().Format(time.RFC3339),
			}
		}
	}

	return e.active.Save(doc)
}
