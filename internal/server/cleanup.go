package server

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"filedrop/internal/logging"
)

const cleanupTimeout = time.Minute

// HealthPruner deletes health probe rows older than a cutoff.
type HealthPruner interface {
	PruneHealthChecks(ctx context.Context, cutoff time.Time) (int64, error)
}

// CleanupConfig holds configuration for the cleanup job
type CleanupConfig struct {
	Schedule  string        // standard cron expression or descriptor; empty disables
	Retention time.Duration // health_checks rows older than this are pruned
	Store     HealthPruner
}

// StartCleanupJob schedules health_checks pruning and starts the scheduler.
// It returns nil when the job is disabled. Callers stop the returned
// scheduler on shutdown.
func StartCleanupJob(cfg CleanupConfig) (*cron.Cron, error) {
	if cfg.Schedule == "" {
		logging.Info(context.Background(), "cleanup disabled")
		return nil, nil
	}
	if cfg.Retention <= 0 {
		return nil, errors.New("cleanup retention must be positive")
	}

	c := cron.New()
	if _, err := c.AddFunc(cfg.Schedule, func() {
		runCleanup(context.Background(), cfg, time.Now())
	}); err != nil {
		return nil, errors.Wrapf(err, "cleanup schedule %q", cfg.Schedule)
	}
	c.Start()

	logging.Info(context.Background(), "cleanup scheduled", logging.Fields{
		"schedule":  cfg.Schedule,
		"retention": cfg.Retention.String(),
	})
	return c, nil
}

func runCleanup(ctx context.Context, cfg CleanupConfig, now time.Time) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, cleanupTimeout)
	defer cancel()

	cutoff := now.Add(-cfg.Retention)
	deleted, err := cfg.Store.PruneHealthChecks(ctx, cutoff)
	if err != nil {
		logging.Error(ctx, "cleanup failed", err, logging.Fields{"cutoff": cutoff.UTC().Format(time.RFC3339)})
		return
	}

	logging.Info(ctx, "cleanup complete", logging.Fields{
		"deleted":     deleted,
		"cutoff":      cutoff.UTC().Format(time.RFC3339),
		"duration_ms": time.Since(start).Milliseconds(),
	})
}
