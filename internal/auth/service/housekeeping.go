package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/retrade/authmesh/internal/auth/store"
	"github.com/retrade/authmesh/pkg/revocation"
)

// HousekeepingService periodically removes expired denylist entries, login
// sessions older than the refresh TTL and retired signing keys past their
// grace period.
type HousekeepingService struct {
	Store      store.Store
	Revocation revocation.Purger
	Logger     *slog.Logger
	Interval   time.Duration

	// SessionRetention is how long login sessions are kept. Sessions older
	// than the refresh TTL can no longer hold a live token.
	SessionRetention time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, purger revocation.Purger, logger *slog.Logger, interval, sessionRetention time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:            st,
		Revocation:       purger,
		Logger:           logger,
		Interval:         interval,
		SessionRetention: sessionRetention,
		stopCh:           make(chan struct{}),
		doneCh:           make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup runs one pass. Each step is independent; a failure in one does
// not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	var successful int

	if s.Revocation != nil {
		if n, err := s.Revocation.PurgeExpired(ctx, now); err != nil {
			s.Logger.Error("failed to purge expired revocations", "error", err)
		} else {
			s.Logger.Debug("purged expired revocations", "count", n)
			successful++
		}
	}

	if s.SessionRetention > 0 {
		if n, err := s.Store.Sessions().DeleteSessionsBefore(ctx, now.Add(-s.SessionRetention)); err != nil {
			s.Logger.Error("failed to delete old login sessions", "error", err)
		} else {
			s.Logger.Debug("deleted old login sessions", "count", n)
			successful++
		}
	}

	if n, err := s.Store.SigningKeys().DeleteExpiredSigningKeys(ctx); err != nil {
		s.Logger.Error("failed to delete expired signing keys", "error", err)
	} else {
		s.Logger.Debug("deleted expired signing keys", "count", n)
		successful++
	}

	s.Logger.Info("housekeeping cleanup completed", "successful_cleanups", successful)
}
