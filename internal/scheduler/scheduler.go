// Package scheduler runs collection on a cron schedule.
package scheduler

import (
	"fmt"
	"strings"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	. "github.com/roelfdiedericks/tgstatctl/internal/logging"
)

// parser accepts standard 5-field expressions and descriptors like @hourly.
var parser = cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor)

// Scheduler fires a function on a cron schedule. A run that is still going
// when the next tick arrives causes that tick to be skipped.
type Scheduler struct {
	expr     string
	schedule cronlib.Schedule

	mu   sync.Mutex
	cron *cronlib.Cron
}

// New parses expr. An empty expression gives a disabled scheduler.
func New(expr string) (*Scheduler, error) {
	expr = strings.TrimSpace(expr)
	s := &Scheduler{expr: expr}
	if expr == "" {
		return s, nil
	}

	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	s.schedule = schedule
	return s, nil
}

// Enabled reports whether a schedule is configured.
func (s *Scheduler) Enabled() bool {
	return s.schedule != nil
}

// Expr returns the configured expression.
func (s *Scheduler) Expr() string {
	return s.expr
}

// Next returns the first activation after now.
func (s *Scheduler) Next(now time.Time) (time.Time, bool) {
	if s.schedule == nil {
		return time.Time{}, false
	}
	return s.schedule.Next(now), true
}

// Start begins firing fn. It is a no-op when disabled or already started.
func (s *Scheduler) Start(fn func()) {
	if s.schedule == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	logger := cronLogger{}
	s.cron = cronlib.New(
		cronlib.WithParser(parser),
		cronlib.WithLogger(logger),
		cronlib.WithChain(cronlib.Recover(logger), cronlib.SkipIfStillRunning(logger)),
	)
	s.cron.Schedule(s.schedule, cronlib.FuncJob(fn))
	s.cron.Start()

	next, _ := s.Next(time.Now())
	L_info("scheduler: started", "expr", s.expr, "next", next.Format(time.RFC3339))
}

// Stop halts the schedule and waits for a running fn to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	L_debug("scheduler: stopped")
}

// cronLogger routes robfig/cron's logging into ours.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	L_trace("scheduler: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	L_error("scheduler: "+msg, append(keysAndValues, "error", err)...)
}
