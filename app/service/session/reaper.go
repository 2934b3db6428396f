package session

import (
	"context"
	"log/slog"
	"time"
)

// RunReaper sweeps expired sessions every sweep interval until ctx is cancelled
func (s *Store) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	slog.Info("Session reaper started",
		slog.Duration("interval", s.sweepInterval),
		slog.Duration("idle_timeout", s.idleTimeout),
	)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Session reaper stopped")
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
