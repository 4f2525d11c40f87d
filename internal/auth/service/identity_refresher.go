package service

import (
	"context"
	"log/slog"
	"time"
)

// DefaultIdentityRefreshInterval is how often provider configuration is
// re-read.
const DefaultIdentityRefreshInterval = 24 * time.Hour

// Refresher reloads identity provider configuration.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// IdentityRefresher re-reads the identity provider's discovery document and
// keys on a fixed interval. A failed refresh is logged; the provider keeps
// its previous configuration.
type IdentityRefresher struct {
	Provider Refresher
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewIdentityRefresher(p Refresher, logger *slog.Logger, interval time.Duration) *IdentityRefresher {
	if interval <= 0 {
		interval = DefaultIdentityRefreshInterval
	}
	return &IdentityRefresher{
		Provider: p,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start refreshes once synchronously, so the first login after startup can
// be verified, then keeps refreshing in the background.
func (r *IdentityRefresher) Start(ctx context.Context) {
	r.refresh(ctx)
	go r.run()
	r.Logger.Info("identity refresher started", "interval", r.Interval)
}

// Stop shuts the worker down and waits for it.
func (r *IdentityRefresher) Stop() {
	close(r.stopCh)
	<-r.doneCh
	r.Logger.Info("identity refresher stopped")
}

func (r *IdentityRefresher) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.refresh(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

func (r *IdentityRefresher) refresh(ctx context.Context) {
	if err := r.Provider.Refresh(ctx); err != nil {
		r.Logger.Warn("identity provider refresh failed, keeping previous configuration", "error", err)
	}
}
