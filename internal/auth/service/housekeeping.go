package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/splitbill/internal/auth/store"
)

// KeyPurger drops expired entries from an in-memory key cache.
type KeyPurger interface {
	PurgeKeys() int
}

// HousekeepingService periodically removes expired refresh tokens and
// expired identity provider keys.
type HousekeepingService struct {
	Store    store.Store
	Keys     KeyPurger // optional
	Logger   *slog.Logger
	Interval time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, keys KeyPurger, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Keys:     keys,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
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

// Cleanup performs one pass. Each step is independent; a failure in one
// does not stop the other.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	n, err := s.Store.RefreshTokens().DeleteExpired(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
	} else {
		s.Logger.Debug("deleted expired refresh tokens", "count", n)
	}

	if s.Keys != nil {
		purged := s.Keys.PurgeKeys()
		s.Logger.Debug("purged expired identity keys", "count", purged)
	}

	s.Logger.Info("housekeeping cleanup completed")
}
