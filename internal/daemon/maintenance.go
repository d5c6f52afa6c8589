package daemon

import (
	"context"
	"time"

	"taskq/internal/logging"
)

// runMaintenance applies the retention policy once at start and then every
// cleanup interval until ctx is cancelled.
func (d *Daemon) runMaintenance(ctx context.Context) {
	interval := d.cfg.CleanupInterval()
	if interval <= 0 {
		return
	}
	d.cleanupOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.cleanupOnce(ctx)
		}
	}
}

func (d *Daemon) cleanupOnce(ctx context.Context) {
	result, err := d.manager.Cleanup(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logging.WarnWithContext(d.logger, "retention pass failed", "retention_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old tasks and events stay in the database until the next pass"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	if result.Tasks == 0 && result.Events == 0 {
		return
	}
	d.logger.Info("retention pass removed rows",
		logging.Int64("tasks_removed", result.Tasks),
		logging.Int64("events_removed", result.Events),
		logging.String(logging.FieldEventType, "retention_pass"),
	)
}
