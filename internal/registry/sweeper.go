package registry

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically force-closes intents whose expiry window has
// passed. Matching cycles also expire stale intents up front, so the
// sweeper only matters for quiet periods between cycles.
type Sweeper struct {
	interval time.Duration
	registry *Registry
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper ticking at the given interval.
func NewSweeper(interval time.Duration, registry *Registry, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		interval: interval,
		registry: registry,
		logger:   logger,
	}
}

// Start launches a background goroutine that sweeps at the configured
// interval. It stops when ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				expired := s.registry.ExpireStale(t.UTC())
				if len(expired) > 0 {
					s.logger.Info("expired stale intents", slog.Int("count", len(expired)))
				}
			}
		}
	}()
}
