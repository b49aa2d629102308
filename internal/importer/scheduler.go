package importer

// scheduler.go provides background cleanup of finished import jobs.
//
// Terminal jobs (completed, failed, cancelled) are kept for a retention
// window so clients can still fetch results, then purged. The scheduler is
// long-running and context-aware for graceful shutdown; it logs errors but
// never fails the application when a cleanup cycle fails.

import (
	"context"
	"log/slog"
	"time"
)

// CleanupConfig holds configuration for the job cleanup scheduler.
// Zero values fall back to defaults.
type CleanupConfig struct {
	Retention     time.Duration // How long terminal jobs are kept (default: 24h)
	CheckInterval time.Duration // How often to run (default: 1h)
}

// StartCleanupScheduler starts a background goroutine that periodically
// purges old terminal jobs. It runs immediately on start, then every
// CheckInterval, and stops when the context is cancelled.
func (s *Service) StartCleanupScheduler(ctx context.Context, cfg CleanupConfig) {
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Hour
	}

	slog.Info("job cleanup scheduler started",
		"retention", cfg.Retention,
		"check_interval", cfg.CheckInterval,
	)

	s.runCleanup(ctx, cfg.Retention)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("job cleanup scheduler stopped")
			return
		case <-ticker.C:
			s.runCleanup(ctx, cfg.Retention)
		}
	}
}

// runCleanup performs one purge cycle.
func (s *Service) runCleanup(ctx context.Context, retention time.Duration) {
	start := time.Now()

	purged, err := s.CleanupOlderThan(ctx, retention)
	if err != nil {
		slog.Error("job cleanup failed", "error", err)
		return
	}
	if purged > 0 {
		slog.Info("purged old import jobs",
			"jobs_purged", purged,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}
