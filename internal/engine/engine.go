// Package engine is the sole orchestrator (spec §5): it wires the sync
// lock, both JSON stores, the sync cursor, the upstream client, and the
// two schedulers together, and exposes every control-plane operation as a
// plain Go method so internal/httpapi stays a thin transport adapter.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/RaphLorr/vacation-dashboard-gemini/internal/activeindex"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/config"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/domain"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/holiday"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/merger"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/scheduler"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/store"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/synccursor"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/synclock"
	"github.com/RaphLorr/vacation-dashboard-gemini/internal/wecom"
)

// manualTriggerMinGap is the minimum spacing between manual-sync triggers
// of the same kind (SPEC_FULL.md's manual-sync rate guard).
const manualTriggerMinGap = 10 * time.Second

// Engine is the single orchestrator instance a process runs.
type Engine struct {
	cfg    *config.Config
	log    zerolog.Logger
	lock   *synclock.Lock
	leave  *store.Store
	active *activeindex.Store
	cursor *synccursor.Store
	client *wecom.Client

	holidays *holiday.Cache

	pollerSched *scheduler.Scheduler
	checkSched  *scheduler.Scheduler

	guardMu        sync.Mutex
	lastPollerRun  time.Time
	lastCheckerRun time.Time
}

// New wires every component together. Schedulers are constructed but not
// started; call Start to begin running them.
func New(cfg *config.Config, log zerolog.Logger, client *wecom.Client, leave *store.Store, active *activeindex.Store, cursor *synccursor.Store) (*Engine, error) {
	e := &Engine{
		cfg:      cfg,
		log:      log,
		lock:     synclock.New(),
		leave:    leave,
		active:   active,
		cursor:   cursor,
		client:   client,
		holidays: holiday.New(holiday.NoHolidaysSource{}),
	}

	pollerLog := log.With().Str("component", "poller").Logger()
	poller, err := scheduler.New("incremental-poller", cfg.SyncInterval, func() { e.RunIncrementalSync(context.Background()) }, pollerLog)
	if err != nil {
		return nil, err
	}
	e.pollerSched = poller

	checkerLog := log.With().Str("component", "status-checker").Logger()
	checker, err := scheduler.New("status-checker", cfg.StatusCheckInterval, func() { e.RunStatusCheck(context.Background()) }, checkerLog)
	if err != nil {
		return nil, err
	}
	e.checkSched = checker

	return e, nil
}

// Start begins both schedulers, honoring their individual enabled flags.
func (e *Engine) Start() {
	if e.cfg.AutoSyncEnabled {
		e.pollerSched.Start()
	}
	if e.cfg.StatusCheckEnabled {
		e.checkSched.Start()
	}
}

// Stop halts both schedulers, waiting for any in-flight tick to finish.
func (e *Engine) Stop() {
	e.pollerSched.Stop()
	e.checkSched.Stop()
}

// StatusDocument is the control-plane snapshot returned by Status (spec §5
// / §6's status endpoint).
type StatusDocument struct {
	LockHeld           bool                      `json:"lockHeld"`
	PollerRunning      bool                      `json:"pollerRunning"`
	StatusCheckRunning bool                      `json:"statusCheckRunning"`
	Cursor             domain.SyncCursorDocument `json:"cursor"`
	ActiveApprovals    int                       `json:"activeApprovals"`
	// IsWorkday annotates the snapshot with whether "now" (in the
	// configured timezone) is a non-weekend, non-holiday day, for operator
	// convenience when deciding whether to trigger a manual sync
	// (SPEC_FULL.md's Holiday Calendar Cache module).
	IsWorkday bool `json:"isWorkday"`
}

// Status reports the current control-plane snapshot.
func (e *Engine) Status() StatusDocument {
	return StatusDocument{
		LockHeld:           e.lock.IsHeld(),
		PollerRunning:      e.pollerSched.Running(),
		StatusCheckRunning: e.checkSched.Running(),
		Cursor:             e.cursor.Get(),
		ActiveApprovals:    len(e.active.Load().Approvals),
		IsWorkday:          e.isWorkday(context.Background()),
	}
}

// isWorkday reports whether now is a non-weekend, non-holiday day. A
// holiday-source error is logged and treated as "workday" (the
// conservative default an operator would want: don't claim a holiday on an
// unreliable read).
func (e *Engine) isWorkday(ctx context.Context) bool {
	now := time.Now()
	if loc := e.cfg.Location(); loc != nil {
		now = now.In(loc)
	}
	if now.Weekday() == time.Saturday || now.Weekday() == time.Sunday {
		return false
	}
	isHoliday, err := e.holidays.IsHoliday(ctx, now)
	if err != nil {
		e.log.Warn().Err(err).Msg("holiday lookup failed, assuming workday")
		return true
	}
	return !isHoliday
}

// IsTracked reports whether spNo is already present in the active index,
// used by the callback handler's event filter (spec §4.9 step 2) to
// short-circuit duplicate Pending pushes for an approval already being
// tracked, without needing a lock acquisition or detail re-fetch.
func (e *Engine) IsTracked(spNo string) bool {
	_, ok := e.active.Load().Approvals[spNo]
	return ok
}

// ActiveApprovals lists every currently-pending approval record.
func (e *Engine) ActiveApprovals() []*domain.ApprovalRecord {
	doc := e.active.Load()
	out := make([]*domain.ApprovalRecord, 0, len(doc.Approvals))
	for _, rec := range doc.Approvals {
		out = append(out, rec)
	}
	return out
}

// ResetCursor resets the sync cursor back to the configured baseline.
func (e *Engine) ResetCursor() error {
	return e.cursor.Reset(e.cfg.BaselineTimestamp)
}

// SetPollerEnabled starts or stops the incremental poller on demand.
func (e *Engine) SetPollerEnabled(enabled bool) {
	if enabled {
		e.pollerSched.Start()
	} else {
		e.pollerSched.Stop()
	}
}

// SetStatusCheckEnabled starts or stops the status checker on demand.
func (e *Engine) SetStatusCheckEnabled(enabled bool) {
	if enabled {
		e.checkSched.Start()
	} else {
		e.checkSched.Stop()
	}
}

// TriggerKind distinguishes which manual cycle a caller wants to run early.
type TriggerKind int

const (
	TriggerIncrementalSync TriggerKind = iota
	TriggerStatusCheck
)

// TriggerManual runs one cycle immediately, out of band from its cron
// schedule, subject to the manual-sync rate guard: it refuses a second
// trigger of the same kind within manualTriggerMinGap of the last one, and
// refuses entirely while the sync lock is already held by anything.
func (e *Engine) TriggerManual(kind TriggerKind) error {
	if e.lock.IsHeld() {
		return domain.NewLockBusyError("sync lock is already held")
	}

	e.guardMu.Lock()
	last := e.lastPollerRun
	if kind == TriggerStatusCheck {
		last = e.lastCheckerRun
	}
	now := time.Now()
	if !last.IsZero() && now.Sub(last) < manualTriggerMinGap {
		e.guardMu.Unlock()
		return domain.NewRateLimitError(nil, "manual trigger throttled: retry after %s", manualTriggerMinGap-now.Sub(last))
	}
	if kind == TriggerStatusCheck {
		e.lastCheckerRun = now
	} else {
		e.lastPollerRun = now
	}
	e.guardMu.Unlock()

	switch kind {
	case TriggerStatusCheck:
		go e.RunStatusCheck(context.Background())
	default:
		go e.RunIncrementalSync(context.Background())
	}
	return nil
}

// applyDetailToBatch folds a single approval's detail into a batch, per
// spec §4.3: locate the vacation block, derive date slots, set every
// slot's status text from sp_status, and record employee info.
func applyDetailToBatch(batch *domain.Batch, client *wecom.Client, detail *wecom.ApprovalInfo, loc *time.Location, log zerolog.Logger) bool {
	if detail.SpName != "leave" && detail.SpName != "请假" {
		return false
	}
	status, ok := domain.StatusFromCode(detail.SpStatus)
	if !ok {
		log.Warn().Str("sp_no", detail.SpNo).Int("sp_status", detail.SpStatus).Msg("unknown status code, skipping")
		return false
	}
	att, ok := domain.FindVacationAttendance(detail.ApplyData.Contents)
	if !ok {
		return false
	}
	slots := domain.GenerateDateSlots(att, loc)
	if len(slots) == 0 {
		return false
	}

	userid := detail.ApplierUserID()
	ctx := context.Background()
	name := client.UserName(ctx, userid)
	dept := unknownDept
	if info, err := client.User(ctx, userid); err == nil && len(info.DepartmentIDs) > 0 {
		dept = client.DepartmentName(ctx, info.DepartmentIDs[0])
	}

	batch.EmployeeInfo[userid] = domain.EmployeeInfo{Name: name, Department: dept}
	slotMap, ok := batch.LeaveData[userid]
	if !ok {
		slotMap = map[string]string{}
		batch.LeaveData[userid] = slotMap
	}
	for _, slot := range slots {
		slotMap[slot] = status.Text()
	}
	return true
}

const unknownDept = "未知"

// applyStoredSlotsToBatch folds an already-tracked approval's cached
// userid/name/department/leaveDates into a batch, setting every stored
// slot's text to the new status (spec §4.8 step 4: "for each slot in the
// stored leaveDates, set leaveData to that text") rather than re-deriving
// slots from a freshly-fetched detail, which may legitimately come back
// empty or different from what was originally recorded.
func applyStoredSlotsToBatch(batch *domain.Batch, rec *domain.ApprovalRecord, status domain.Status) {
	batch.EmployeeInfo[rec.UserID] = domain.EmployeeInfo{Name: rec.Name, Department: rec.Department}
	slotMap, ok := batch.LeaveData[rec.UserID]
	if !ok {
		slotMap = map[string]string{}
		batch.LeaveData[rec.UserID] = slotMap
	}
	for _, slot := range rec.LeaveDates {
		slotMap[slot] = status.Text()
	}
}

// mergeAndPersist is the common "load, merge, save" sequence every update
// source funnels through under the sync lock (spec §4.4).
func (e *Engine) mergeAndPersist(batch *domain.Batch) (merger.Result, error) {
	current := e.leave.Load()
	merged, res := merger.Merge(current, batch)
	if err := e.leave.Save(merged); err != nil {
		return res, err
	}
	return res, nil
}
