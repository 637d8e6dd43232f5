package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"

	"city-stats-platform/internal/services"
	"city-stats-platform/pkg/logging"
)

// DefaultInterval is used when no positive interval is configured
const DefaultInterval = 15 * time.Minute

// ErrNoRunner is returned by Start when no pipeline was supplied
var ErrNoRunner = errors.New("scheduler: no pipeline runner configured")

// Runner executes one pipeline batch
type Runner interface {
	Run(ctx context.Context) (*services.RunResult, error)
}

// Scheduler periodically runs the pipeline. Runs never overlap: a tick that
// fires while a run is in flight is skipped.
type Scheduler struct {
	scheduler  *gocron.Scheduler
	runner     Runner
	interval   time.Duration
	runTimeout time.Duration
	logger     *logging.StructuredLogger
	onComplete func(*services.RunResult, error)
}

// New creates a new Scheduler
func New(runner Runner, interval, runTimeout time.Duration, logger *logging.StructuredLogger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Scheduler{
		scheduler:  s,
		runner:     runner,
		interval:   interval,
		runTimeout: runTimeout,
		logger:     logger,
	}
}

// OnComplete registers a callback invoked after every run
func (s *Scheduler) OnComplete(fn func(*services.RunResult, error)) {
	s.onComplete = fn
}

// Start schedules the periodic job and starts the underlying scheduler.
// The first run starts immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.runner == nil {
		return ErrNoRunner
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "[SCHEDULER_START] Pipeline scheduler started", logging.Fields{
		"interval": s.interval.String(),
	})

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future runs
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

// IsRunning reports whether the scheduler has been started and not stopped
func (s *Scheduler) IsRunning() bool {
	return s.scheduler.IsRunning()
}

func (s *Scheduler) runOnce(parent context.Context) {
	if parent.Err() != nil {
		return
	}

	ctx := parent
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, s.runTimeout)
		defer cancel()
	}

	s.logger.Debug(ctx, "[SCHEDULER_TICK] Running scheduled pipeline batch", nil)

	result, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error(ctx, "[SCHEDULER_RUN_FAILED] Scheduled pipeline run failed", nil, err)
	} else if result.BatchSize == 0 {
		s.logger.Info(ctx, "[SCHEDULER_IDLE] Roster exhausted, aggregation refreshed", logging.Fields{
			"cities": len(result.Summaries),
		})
	}

	if s.onComplete != nil {
		s.onComplete(result, err)
	}
}
