package scheduler

import (
	"context"
	"fmt"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

const stopTimeout = 5 * time.Second

// Scheduler runs the periodic maintenance sweeps
type Scheduler struct {
	cron   *rcron.Cron
	jobs   map[string]rcron.EntryID
	logger zerolog.Logger
}

// New creates a scheduler. Jobs recover from panics and are skipped while a previous run is still going.
func New(logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := cronLog{logger: logger}

	return &Scheduler{
		cron: rcron.New(
			rcron.WithSeconds(),
			rcron.WithLogger(cronLogger),
			rcron.WithChain(rcron.Recover(cronLogger), rcron.SkipIfStillRunning(cronLogger)),
		),
		jobs:   make(map[string]rcron.EntryID),
		logger: logger,
	}
}

// Every registers fn to run every interval. Intervals below one second round up.
func (s *Scheduler) Every(name string, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive, got %v", name, interval)
	}
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	id, err := s.cron.AddFunc("@every "+interval.String(), fn)
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.jobs[name] = id

	s.logger.Info().Str("job", name).Dur("interval", interval).Msg("job registered")
	return nil
}

// Jobs returns the registered job names with their next run time
func (s *Scheduler) Jobs() map[string]time.Time {
	result := make(map[string]time.Time, len(s.jobs))
	for name, id := range s.jobs {
		result[name] = s.cron.Entry(id).Next
	}
	return result
}

// Start runs the scheduler until ctx is cancelled
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("scheduler started")

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop stops scheduling and waits for running jobs to finish
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info().Msg("scheduler stopped")
	case <-time.After(stopTimeout):
		s.logger.Warn().Msg("scheduler stop timed out waiting for running jobs")
	}
}

// cronLog adapts zerolog to cron.Logger
type cronLog struct {
	logger zerolog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
