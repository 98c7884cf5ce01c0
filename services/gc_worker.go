package services

import (
	"context"
	"log/slog"
	"time"
)

// GarbageCollector periodically removes expired consents.
type GarbageCollector struct {
	Service  *ConsentService
	Interval time.Duration
	Logger   *slog.Logger
}

// Run collects once immediately and then on every tick until ctx is done.
func (g *GarbageCollector) Run(ctx context.Context) {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := g.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	collect := func() {
		if _, err := g.Service.GarbageCollect(ctx); err != nil && ctx.Err() == nil {
			logger.ErrorContext(ctx, "consent garbage collection failed", "err", err)
		}
	}

	collect()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			collect()
		}
	}
}
