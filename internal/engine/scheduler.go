package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler manages the periodic poll and age-refresh tasks.
type Scheduler struct {
	cron   *cron.Cron
	engine *Engine
	log    *slog.Logger
}

// NewScheduler creates a Scheduler that runs engine tasks on a
// schedule. A poll cycle that outlasts its interval suppresses the
// next run instead of overlapping it.
func NewScheduler(
	eng *Engine,
	pollInterval time.Duration,
	refreshInterval time.Duration,
	log *slog.Logger,
) (*Scheduler, error) {
	c := cron.New(
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{log: log})),
	)

	s := &Scheduler{
		cron:   c,
		engine: eng,
		log:    log,
	}

	if _, err := c.AddFunc(
		"@every "+pollInterval.String(),
		s.runPoll,
	); err != nil {
		return nil, err
	}

	if refreshInterval > 0 {
		if _, err := c.AddFunc(
			"@every "+refreshInterval.String(),
			s.runAgeRefresh,
		); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Start begins running scheduled tasks.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started")
	s.cron.Start()
}

// Stop gracefully stops the scheduler, waiting for running jobs to finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("scheduler stopping")
	return s.cron.Stop()
}

// Entries returns the registered cron entries for inspection.
func (s *Scheduler) Entries() []cron.Entry {
	return s.cron.Entries()
}

func (s *Scheduler) runPoll() {
	ctx := context.Background()
	s.log.Info("scheduled poll starting")
	if err := s.engine.RunCycle(ctx); err != nil {
		s.log.Error("scheduled poll failed", "error", err)
	}
}

func (s *Scheduler) runAgeRefresh() {
	ctx := context.Background()
	s.log.Debug("scheduled age refresh starting")
	if err := s.engine.RunAgeRefresh(ctx); err != nil {
		s.log.Error("scheduled age refresh failed", "error", err)
	}
}

// cronLogger adapts slog to the cron logger interface so skipped runs
// surface in the application log.
type cronLogger struct {
	log *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Info(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Error(msg, append(keysAndValues, "error", err)...)
}
