// Package domain holds the pure data model and pure transformation logic
// shared by every other package in the sync engine: approval statuses,
// date-slot encoding, and the tagged error types used to classify failures
// (see spec §7).
package domain

// Status is the tagged variant for an approval's lifecycle state, mirroring
// the upstream platform's sp_status integer codes.
type Status int

const (
	StatusUnknown Status = iota
	StatusPending
	StatusApproved
	StatusRejected
	StatusWithdrawn
	StatusRevokedAfterApproval
	StatusDeleted
	StatusPaid
)

// statusCodeTable maps the upstream sp_status integer to our Status. Unknown
// codes intentionally have no entry; StatusFromCode reports ok=false for
// them, which callers must treat as "skip this approval".
var statusCodeTable = map[int]Status{
	1:  StatusPending,
	2:  StatusApproved,
	3:  StatusRejected,
	4:  StatusWithdrawn,
	6:  StatusRevokedAfterApproval,
	7:  StatusDeleted,
	10: StatusPaid,
}

var statusTextTable = map[Status]string{
	StatusPending:              "Pending",
	StatusApproved:             "Approved",
	StatusRejected:             "Rejected",
	StatusWithdrawn:            "Withdrawn",
	StatusRevokedAfterApproval: "RevokedAfterApproval",
	StatusDeleted:              "Deleted",
	StatusPaid:                 "Paid",
}

// StatusFromCode maps an upstream sp_status code to a Status. ok is false
// for any code not in the documented table (§4.3), in which case callers
// must skip the approval rather than guess.
func StatusFromCode(code int) (s Status, ok bool) {
	s, ok = statusCodeTable[code]
	return
}

// Text renders the status the way it is persisted in the leave store (the
// value side of leaveData[userid][slot]).
func (s Status) Text() string {
	if t, ok := statusTextTable[s]; ok {
		return t
	}
	return ""
}

// StatusFromText is the inverse of Text, used when re-loading leave store
// contents that need to be compared against a Status (e.g. the merger).
func StatusFromText(text string) (s Status, ok bool) {
	for k, v := range statusTextTable {
		if v == text {
			return k, true
		}
	}
	return StatusUnknown, false
}

// terminalStatuses is the set from the GLOSSARY's "Terminal status" entry.
var terminalStatuses = map[Status]bool{
	StatusApproved:             true,
	StatusRejected:             true,
	StatusWithdrawn:            true,
	StatusRevokedAfterApproval: true,
	StatusDeleted:              true,
	StatusPaid:                 true,
}

// IsTerminal reports whether s is a terminal status (every status other than
// Pending and Unknown).
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}
