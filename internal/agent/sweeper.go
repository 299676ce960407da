package agent

import (
	"context"
	"log/slog"
	"time"
)

const defaultSweepInterval = 5 * time.Minute

// StartSessionSweeper runs a background goroutine that periodically drops
// sessions idle for longer than ttl. It stops when ctx ends.
func StartSessionSweeper(ctx context.Context, svc *Service, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case now := <-ticker.C:
				if removed := svc.Sweep(ttl, now); removed > 0 {
					slog.Info("Session sweeper dropped idle sessions", "count", removed)
				}
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
