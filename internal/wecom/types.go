package wecom

import "github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"

// The shapes below mirror the upstream enterprise-approval platform's wire
// format (spec §4.2). Fields we never read are omitted; "info" is otherwise
// treated as opaque per spec.

type tokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type listApprovalResponse struct {
	ErrCode    int      `json:"errcode"`
	ErrMsg     string   `json:"errmsg"`
	NextCursor string   `json:"next_cursor"`
	HasMore    int      `json:"has_more"`
	SpNoList   []string `json:"sp_no_list"`
}

// applierRef models the spec §9 open question: the source mixes "applier"
// and "applyer" spellings reading the detail response. Both are handled
// defensively; we don't know whether upstream ever emits the second one.
type applierRef struct {
	UserID string `json:"userid"`
}

// ApprovalInfo is the upstream "info" object (spec §4.2), opaque except for
// the fields §4.2/§4.3 name explicitly.
type ApprovalInfo struct {
	SpNo      string           `json:"sp_no"`
	SpStatus  int              `json:"sp_status"`
	SpName    string           `json:"sp_name"`
	ApplyTime int64            `json:"apply_time"`
	Applier   applierRef       `json:"applier"`
	Applyer   applierRef       `json:"applyer"`
	ApplyData domain.ApplyData `json:"apply_data"`
}

// ApplierUserID resolves whichever spelling upstream actually populated.
func (a *ApprovalInfo) ApplierUserID() string {
	if a.Applier.UserID != "" {
		return a.Applier.UserID
	}
	return a.Applyer.UserID
}

type approvalDetailResponse struct {
	ErrCode int          `json:"errcode"`
	ErrMsg  string       `json:"errmsg"`
	Info    ApprovalInfo `json:"info"`
}

type userResponse struct {
	ErrCode  int      `json:"errcode"`
	ErrMsg   string   `json:"errmsg"`
	UserID   string   `json:"userid"`
	Name     string   `json:"name"`
	Dept     []string `json:"department"`
	MainDept string   `json:"main_department"`
}

type departmentResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
	Name    string `json:"name"`
}

// UserInfo is the cached shape of a user/userid lookup (spec §4.2's
// "map userid -> (name, department-id-list, main-dept-id)").
type UserInfo struct {
	Name          string
	DepartmentIDs []string
	MainDeptID    string
}

// rateLimitErrCode is the upstream application error code for "too
// frequent" (spec §4.2/§4.10: "code 45009").
const rateLimitErrCode = 45009

// unknownName is substituted whenever a user/department lookup fails,
// per spec §4.2: "callers fall back to 未知".
const unknownName = "未知"
