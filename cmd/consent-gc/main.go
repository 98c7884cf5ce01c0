// Command consent-gc removes expired, unapproved consents once and exits.
// Run it from cron when the server's built-in collector is not wanted.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"form-consent/app"
	"form-consent/config"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config load failed", "err", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	n, err := a.Consents.GarbageCollect(ctx)
	if err != nil {
		logger.Error("garbage collection failed", "err", err)
		os.Exit(1)
	}
	logger.Info("garbage collection finished", "deleted", n)
}
