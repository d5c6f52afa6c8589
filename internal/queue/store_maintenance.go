package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// CleanupOldEvents removes events created before now-maxAge.
func (s *Store) CleanupOldEvents(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, errors.New("cleanup old events: max age must be positive")
	}
	cutoff := toMillis(s.Now().Add(-maxAge))
	res, err := s.execWithRetry(ctx, `DELETE FROM events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup old events: %w", err)
	}
	return res.RowsAffected()
}

// CleanupOldTasks removes tasks, and their events, whose enqueue time, retry
// deadline, and last update all fall before now-maxAge. Running tasks are
// never removed.
func (s *Store) CleanupOldTasks(ctx context.Context, maxAge time.Duration) (CleanupResult, error) {
	if maxAge <= 0 {
		return CleanupResult{}, errors.New("cleanup old tasks: max age must be positive")
	}
	ctx = ensureContext(ctx)
	cutoff := toMillis(s.Now().Add(-maxAge))
	const oldTasks = `SELECT id FROM tasks
        WHERE queued_at < ? AND retry_at < ? AND updated_at < ? AND status <> ?`

	var result CleanupResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result = CleanupResult{}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM events WHERE task_id IN (`+oldTasks+`)`,
			cutoff, cutoff, cutoff, StatusRunning,
		)
		if err != nil {
			return fmt.Errorf("delete old task events: %w", err)
		}
		if result.Events, err = res.RowsAffected(); err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx,
			`DELETE FROM tasks WHERE id IN (`+oldTasks+`)`,
			cutoff, cutoff, cutoff, StatusRunning,
		)
		if err != nil {
			return fmt.Errorf("delete old tasks: %w", err)
		}
		result.Tasks, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return CleanupResult{}, fmt.Errorf("cleanup old tasks: %w", err)
	}
	return result, nil
}

// CleanupOrphanEvents removes events whose task no longer exists, then
// completed tasks that have no events left to explain them.
func (s *Store) CleanupOrphanEvents(ctx context.Context) (CleanupResult, error) {
	ctx = ensureContext(ctx)
	var result CleanupResult
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		result = CleanupResult{}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM events
             WHERE task_id IS NOT NULL
               AND NOT EXISTS (SELECT 1 FROM tasks t WHERE t.id = events.task_id)`,
		)
		if err != nil {
			return fmt.Errorf("delete orphan events: %w", err)
		}
		if result.Events, err = res.RowsAffected(); err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx,
			`DELETE FROM tasks
             WHERE status = ?
               AND NOT EXISTS (SELECT 1 FROM events e WHERE e.task_id = tasks.id)`,
			StatusComplete,
		)
		if err != nil {
			return fmt.Errorf("delete completed tasks: %w", err)
		}
		result.Tasks, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return CleanupResult{}, fmt.Errorf("cleanup orphans: %w", err)
	}
	return result, nil
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued, StatusWaiting:
			health.Pending += count
		case StatusRunning:
			health.Running += count
		case StatusFailed:
			health.Failed += count
		case StatusComplete:
			health.Complete += count
		}
	}
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM events`).Scan(&health.Events); err != nil {
		return HealthSummary{}, fmt.Errorf("count events: %w", err)
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the task database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT version FROM schema_version LIMIT 1").Scan(&health.SchemaVersion); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("read schema version: %w", err)
	}

	missing, err := missingTables(connCtx, s.db)
	if err != nil {
		health.Error = err.Error()
		return health, err
	}
	health.MissingTables = missing
	if len(health.MissingTables) == 0 {
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM tasks").Scan(&health.TotalTasks); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count tasks: %w", err)
		}
		if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(1) FROM events").Scan(&health.TotalEvents); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count events: %w", err)
		}
	}

	var integrityResult string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
