package identsync

import (
	"context"
	"log/slog"
	"time"

	"github.com/retrade/authmesh/pkg/slogx"
)

// DefaultInterval runs the sync twice a day.
const DefaultInterval = 12 * time.Hour

// Runner is satisfied by *Job.
type Runner interface {
	Run(ctx context.Context) (Report, error)
}

// Scheduler runs a Job once at start and then on a fixed interval.
type Scheduler struct {
	Job      Runner
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScheduler creates a scheduler. If interval is 0 or negative, defaults
// to DefaultInterval.
func NewScheduler(job Runner, logger *slog.Logger, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		Job:      job,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background loop. Call Stop to shut it down.
func (s *Scheduler) Start() {
	go s.run()
	s.Logger.Info("identity sync scheduler started", "interval", s.Interval)
}

// Stop cancels an in-flight run and blocks until the loop exits.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("identity sync scheduler stopped")
}

func (s *Scheduler) run() {
	defer close(s.doneCh)

	ctx, cancel := context.WithCancel(slogx.WithContext(context.Background(), s.Logger))
	defer cancel()
	go func() {
		select {
		case <-s.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.Job.Run(ctx); err != nil {
		s.Logger.Error("identity sync failed", "error", err)
	}
}
