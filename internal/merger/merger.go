// Package merger implements the idempotent merge rule (spec §4.4) that
// every one of the three update sources funnels through before writing the
// leave store. It is a pure function: no I/O, no locking — the caller
// holds the sync lock around the Load/Merge/Save sequence.
package merger

import (
	"time"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
)

// Result reports the counts the spec asks for, for logging (spec §4.4).
type Result struct {
	NewEmployees     int
	UpdatedEmployees int
}

// Merge combines incoming into current under the idempotent rule:
//
//   - employeeInfo[k] = incoming, unconditionally, for every employee
//     present in incoming (upstream always wins).
//   - for every (employee, slot) in incoming.LeaveData: if current has no
//     status for that slot, set it; otherwise apply the merger rule
//     (incoming Approved always wins; incoming Pending never demotes an
//     existing Approved; anything else overwrites).
//
// current is mutated in place and returned, along with counts. Merge is
// deterministic and produces the same current regardless of how many times
// it is called with the same incoming (P2: idempotency), and never demotes
// an Approved slot via a later Pending observation (P3: approved
// stickiness).
func Merge(current *domain.LeaveDocument, incoming *domain.Batch) (*domain.LeaveDocument, Result) {
	var res Result

	for uid, info := range incoming.EmployeeInfo {
		if _, existed := current.EmployeeInfo[uid]; !existed {
			res.NewEmployees++
		} else {
			res.UpdatedEmployees++
		}
		current.EmployeeInfo[uid] = info
	}

	for uid, slots := range incoming.LeaveData {
		existing, ok := current.LeaveData[uid]
		if !ok {
			existing = map[string]string{}
			current.LeaveData[uid] = existing
		}
		for slot, incomingText := range slots {
			existing[slot] = applyRule(existing[slot], incomingText)
		}
	}

	current.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return current, res
}

// applyRule is the merger rule in isolation, for a single slot; Merge
// applies it to every incoming slot.
func applyRule(currentText, incomingText string) string {
	if currentText == "" {
		return incomingText
	}
	incoming, ok := domain.StatusFromText(incomingText)
	if !ok {
		return incomingText
	}
	if incoming == domain.StatusApproved {
		return incomingText
	}
	current, ok := domain.StatusFromText(currentText)
	if ok && current == domain.StatusApproved && incoming == domain.StatusPending {
		return currentText
	}
	return incomingText
}

// ApplyRule exposes applyRule for callers that update a single slot
// outside a full Merge, so the same idempotent/sticky logic is never
// duplicated. The engine's update paths (callback dispatch, status checker,
// poller) all go through Merge rather than calling this directly.
func ApplyRule(currentText, incomingText string) string {
	return applyRule(currentText, incomingText)
}
