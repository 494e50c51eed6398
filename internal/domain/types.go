package domain

import "time"

// EmployeeInfo is the value side of LeaveStore.EmployeeInfo. Upstream always
// wins: whichever approval is processed last overwrites name/department
// unconditionally (spec §3, Employee lifecycle).
type EmployeeInfo struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

// LeaveData is userid -> dateSlot -> status text, exactly as persisted.
type LeaveData map[string]map[string]string

// EmployeeInfoMap is userid -> EmployeeInfo, exactly as persisted.
type EmployeeInfoMap map[string]EmployeeInfo

// LeaveDocument is the single JSON document owned exclusively by the leave
// store (spec §3, §6).
type LeaveDocument struct {
	LeaveData    LeaveData       `json:"leaveData"`
	EmployeeInfo EmployeeInfoMap `json:"employeeInfo"`
	UpdatedAt    string          `json:"updatedAt"`
}

// NewLeaveDocument returns an empty, non-nil document, ready to merge into.
func NewLeaveDocument() *LeaveDocument {
	return &LeaveDocument{
		LeaveData:    LeaveData{},
		EmployeeInfo: EmployeeInfoMap{},
	}
}

// Clone deep-copies the document. The leave store and active-index store
// both return clones from their Load methods, per spec §4.5's "reads return
// a deep copy" rule, applied uniformly to both stores.
func (d *LeaveDocument) Clone() *LeaveDocument {
	out := &LeaveDocument{
		LeaveData:    make(LeaveData, len(d.LeaveData)),
		EmployeeInfo: make(EmployeeInfoMap, len(d.EmployeeInfo)),
		UpdatedAt:    d.UpdatedAt,
	}
	for uid, slots := range d.LeaveData {
		cp := make(map[string]string, len(slots))
		for slot, status := range slots {
			cp[slot] = status
		}
		out.LeaveData[uid] = cp
	}
	for uid, info := range d.EmployeeInfo {
		out.EmployeeInfo[uid] = info
	}
	return out
}

// Batch is the shape the merger consumes: an incoming (or current) set of
// leave data plus employee info, with no timestamp of its own (the merger
// stamps UpdatedAt on its output).
type Batch struct {
	LeaveData    LeaveData
	EmployeeInfo EmployeeInfoMap
}

// NewBatch returns an empty, non-nil Batch.
func NewBatch() *Batch {
	return &Batch{LeaveData: LeaveData{}, EmployeeInfo: EmployeeInfoMap{}}
}

// ApprovalRecord is an active-index entry (spec §3, "only lives in the
// active index"). It carries enough to perform a terminal transition
// without an extra detail fetch.
type ApprovalRecord struct {
	SpNo            string    `json:"sp_no"`
	UserID          string    `json:"userid"`
	Name            string    `json:"name"`
	Department      string    `json:"department"`
	ApplyTime       int64     `json:"apply_time"`
	SubmitTime      int64     `json:"submit_time"`
	CurrentStatus   Status    `json:"current_status"`
	StatusText      string    `json:"status_text"`
	LeaveDates      []string  `json:"leave_dates"`
	LastChecked     time.Time `json:"last_checked"`
	LastCheckedTime string    `json:"last_checked_time"`
}

// ActiveIndexMetadata describes the cutoff invariant (I4) enforced by the
// active-index store.
type ActiveIndexMetadata struct {
	CutoffTimestamp int64  `json:"cutoffTimestamp"`
	CutoffDate      string `json:"cutoffDate"`
}

// ActiveIndexDocument is the single JSON document owned exclusively by the
// active-index store.
type ActiveIndexDocument struct {
	Metadata  ActiveIndexMetadata        `json:"metadata"`
	Approvals map[string]*ApprovalRecord `json:"approvals"`
}

// Clone deep-copies the document, for the same reason LeaveDocument.Clone
// exists: Load must never hand out a reference an outside caller could
// mutate without going through the sync lock.
func (d *ActiveIndexDocument) Clone() *ActiveIndexDocument {
	out := &ActiveIndexDocument{
		Metadata:  d.Metadata,
		Approvals: make(map[string]*ApprovalRecord, len(d.Approvals)),
	}
	for spNo, rec := range d.Approvals {
		cp := *rec
		cp.LeaveDates = append([]string(nil), rec.LeaveDates...)
		out.Approvals[spNo] = &cp
	}
	return out
}

// SyncCursorDocument is the single JSON document owned by the incremental
// poller.
type SyncCursorDocument struct {
	LastSyncEndTimestamp int64  `json:"lastSyncEndTimestamp"`
	LastSyncTime         string `json:"lastSyncTime"`
	TotalSynced          int    `json:"totalSynced"`
	SuccessfulSyncs      int    `json:"successfulSyncs"`
	FailedSyncs          int    `json:"failedSyncs"`
}
