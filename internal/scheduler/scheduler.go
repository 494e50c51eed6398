// Package scheduler drives the incremental poller and status checker on
// their configured cron expressions (spec §4.7/§4.8), using the same
// cron library style the rest of the corpus reaches for rather than a
// hand-rolled ticker loop.
package scheduler

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler owns a single named job on a single cron schedule, with
// explicit Start/Stop control-plane hooks (spec §5: the control plane can
// start/stop each source independently).
type Scheduler struct {
	name string
	expr string
	job  func()
	log  zerolog.Logger

	cron    *cron.Cron
	entryID cron.EntryID
	running bool
}

// New builds a Scheduler for job, which runs once per expr (standard
// five-field cron syntax). The job does not start running until Start is
// called.
func New(name, expr string, job func(), log zerolog.Logger) (*Scheduler, error) {
	c := cron.New()
	id, err := c.AddFunc(expr, job)
	if err != nil {
		return nil, err
	}
	return &Scheduler{name: name, expr: expr, job: job, log: log, cron: c, entryID: id}, nil
}

// Start begins running the job on schedule. Calling Start while already
// running is a no-op.
func (s *Scheduler) Start() {
	if s.running {
		return
	}
	s.running = true
	s.log.Info().Str("job", s.name).Str("cron", s.expr).Msg("scheduler started")
	s.cron.Start()
}

// Stop halts future runs, waiting for any currently executing invocation
// to finish (cron.Cron.Stop's documented behavior). Calling Stop while
// already stopped is a no-op.
func (s *Scheduler) Stop() {
	if !s.running {
		return
	}
	s.running = false
	<-s.cron.Stop().Done()
	s.log.Info().Str("job", s.name).Msg("scheduler stopped")
}

// Running reports whether the schedule is currently active.
func (s *Scheduler) Running() bool {
	return s.running
}

// RunNow triggers the job once, immediately, out of band from its cron
// schedule. It runs synchronously
// on the calling goroutine; callers that need non-blocking behavior should
// invoke it from their own goroutine.
func (s *Scheduler) RunNow() {
	s.job()
}
