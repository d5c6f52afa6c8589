package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DelayFunc returns the backoff applied before the retryCount-th retry.
type DelayFunc func(retryCount int) time.Duration

// Enqueue persists a new queued task on the named lane.
func (s *Store) Enqueue(ctx context.Context, lane string, task NewTask) (*TaskRecord, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(task.Kind) == "" {
		return nil, errors.New("enqueue: task kind is required")
	}
	if len(task.Payload) == 0 {
		return nil, errors.New("enqueue: task payload is required")
	}
	if task.RetryLimit < 0 {
		task.RetryLimit = 0
	}
	now := toMillis(s.Now())

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		queueID, err := queueIDTx(ctx, tx, lane)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO tasks (
                queue_id, kind, category, description, queued_at, priority,
                status, retry_at, retry_count, retry_limit, payload, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
			queueID,
			task.Kind,
			task.Category,
			task.Description,
			now,
			task.Priority,
			StatusQueued,
			now,
			task.RetryLimit,
			task.Payload,
			now,
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// GetTask fetches a task by identifier. It returns nil when the row does not exist.
func (s *Store) GetTask(ctx context.Context, id int64) (*TaskRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+taskColumns+taskFrom+` WHERE t.id = ?`, id)
	rec, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return rec, nil
}

// NextReadyTask returns the next task the lane should run. Ready rows are
// ordered by priority (highest first), then retry deadline, then id. When no
// row is ready yet, the pending row with the earliest deadline is returned
// with the time left until it becomes runnable. A nil result means the lane
// has no queued or waiting rows at all.
func (s *Store) NextReadyTask(ctx context.Context, lane string) (*ScheduledTask, error) {
	ctx = ensureContext(ctx)
	now := s.Now()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+taskFrom+`
         WHERE q.name = ? AND t.status IN (?, ?) AND t.retry_at <= ?
         ORDER BY t.priority DESC, t.retry_at ASC, t.id ASC
         LIMIT 1`,
		lane, StatusQueued, StatusWaiting, toMillis(now),
	)
	rec, err := scanTask(row)
	if err == nil {
		return &ScheduledTask{Record: rec}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("next ready task: %w", err)
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+taskFrom+`
         WHERE q.name = ? AND t.status IN (?, ?)
         ORDER BY t.retry_at ASC, t.priority DESC, t.id ASC
         LIMIT 1`,
		lane, StatusQueued, StatusWaiting,
	)
	rec, err = scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next waiting task: %w", err)
	}
	wait := rec.RetryAt.Sub(now)
	if wait < 0 {
		wait = 0
	}
	return &ScheduledTask{Record: rec, Wait: wait}, nil
}

// MarkRunning claims a queued or waiting task.
func (s *Store) MarkRunning(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		StatusRunning, toMillis(s.Now()), id, StatusQueued, StatusWaiting,
	)
	if err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	return s.requireTransition(ctx, res, id, StatusRunning)
}

// MarkComplete records a successful run. A nil payload keeps the stored one.
func (s *Store) MarkComplete(ctx context.Context, id int64, payload []byte) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
         SET status = ?, failure_reason = NULL, exception = NULL,
             payload = COALESCE(?, payload), updated_at = ?
         WHERE id = ?`,
		StatusComplete, nullableBytes(payload), toMillis(s.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("mark complete: %w", err)
	}
	return s.requireTransition(ctx, res, id, StatusComplete)
}

// MarkRequeue schedules another attempt: retry_count is incremented and
// retry_at moves to now plus delay(retry_count). When the retry limit is
// already spent the task is failed with RetryLimitExceededReason instead.
// The returned status is the one persisted.
func (s *Store) MarkRequeue(ctx context.Context, id int64, payload []byte, delay DelayFunc) (Status, error) {
	ctx = ensureContext(ctx)
	now := s.Now()
	var result Status

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var retryCount, retryLimit int
		err := tx.QueryRowContext(ctx, `SELECT retry_count, retry_limit FROM tasks WHERE id = ?`, id).Scan(&retryCount, &retryLimit)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %d", ErrTaskNotFound, id)
		}
		if err != nil {
			return fmt.Errorf("load retry state: %w", err)
		}

		if retryCount >= retryLimit {
			result = StatusFailed
			_, err = tx.ExecContext(ctx,
				`UPDATE tasks
                 SET status = ?, failure_reason = ?, payload = COALESCE(?, payload), updated_at = ?
                 WHERE id = ?`,
				StatusFailed, RetryLimitExceededReason, nullableBytes(payload), toMillis(now), id,
			)
			if err != nil {
				return fmt.Errorf("fail exhausted task: %w", err)
			}
			return nil
		}

		next := retryCount + 1
		var wait time.Duration
		if delay != nil {
			wait = delay(next)
		}
		result = StatusWaiting
		_, err = tx.ExecContext(ctx,
			`UPDATE tasks
             SET status = ?, retry_count = ?, retry_at = ?, payload = COALESCE(?, payload), updated_at = ?
             WHERE id = ?`,
			StatusWaiting, next, toMillis(now.Add(wait)), nullableBytes(payload), toMillis(now), id,
		)
		if err != nil {
			return fmt.Errorf("requeue task: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

// MarkFailed records a terminal failure with its reason and serialized exception.
func (s *Store) MarkFailed(ctx context.Context, id int64, payload []byte, reason string, exception []byte) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
         SET status = ?, failure_reason = ?, exception = ?, payload = COALESCE(?, payload), updated_at = ?
         WHERE id = ?`,
		StatusFailed, nullableString(reason), nullableBytes(exception), nullableBytes(payload), toMillis(s.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return s.requireTransition(ctx, res, id, StatusFailed)
}

// UpdatePayload replaces a task's serialized body and description.
func (s *Store) UpdatePayload(ctx context.Context, id int64, payload []byte, description string) error {
	if len(payload) == 0 {
		return errors.New("update task payload: empty payload")
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks SET payload = ?, description = ?, updated_at = ? WHERE id = ?`,
		payload, description, toMillis(s.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("update task payload: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task payload: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrTaskNotFound, id)
	}
	return nil
}

// DeleteTask removes a task and the events that reference it. It returns the
// number of events removed alongside the task.
func (s *Store) DeleteTask(ctx context.Context, id int64) (int64, error) {
	ctx = ensureContext(ctx)
	var events int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM events WHERE task_id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete task events: %w", err)
		}
		if events, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("delete task events: %w", err)
		}
		res, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: %d", ErrTaskNotFound, id)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return events, nil
}

// ListTasks returns tasks with their event counts, newest first.
func (s *Store) ListTasks(ctx context.Context, filter TaskFilter) ([]TaskSummary, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Category != nil {
		clauses = append(clauses, "t.category = ?")
		args = append(args, *filter.Category)
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, "t.status IN ("+makePlaceholders(len(filter.Statuses))+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if lane := strings.TrimSpace(filter.Lane); lane != "" {
		clauses = append(clauses, "q.name = ?")
		args = append(args, lane)
	}

	query := `SELECT ` + taskColumns + `, (SELECT COUNT(1) FROM events e WHERE e.task_id = t.id)` + taskFrom
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY t.queued_at DESC, t.id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []TaskSummary
	for rows.Next() {
		var count int
		rec, err := scanTask(rows, &count)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, TaskSummary{TaskRecord: *rec, EventCount: count})
	}
	return tasks, rows.Err()
}

// HasActiveTasks reports whether any task of the category has not finished.
func (s *Store) HasActiveTasks(ctx context.Context, category int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT COUNT(1) FROM tasks WHERE category = ? AND status NOT IN (?, ?)`,
		category, StatusComplete, StatusFailed,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("count active tasks: %w", err)
	}
	return count > 0, nil
}

// RetryFailed moves a failed task back to queued with a fresh retry budget.
func (s *Store) RetryFailed(ctx context.Context, id int64) error {
	now := toMillis(s.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks
         SET status = ?, retry_count = 0, retry_at = ?, failure_reason = NULL, exception = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusQueued, now, now, id, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("retry failed task: %w", err)
	}
	return s.requireTransition(ctx, res, id, StatusQueued)
}

// RecoverRunning returns tasks left running by a previous process to the
// queued state so their lanes pick them up again. Retry counts are kept.
func (s *Store) RecoverRunning(ctx context.Context) (int64, error) {
	now := toMillis(s.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks SET status = ?, retry_at = MIN(retry_at, ?), updated_at = ? WHERE status = ?`,
		StatusQueued, now, now, StatusRunning,
	)
	if err != nil {
		return 0, fmt.Errorf("recover running tasks: %w", err)
	}
	return res.RowsAffected()
}

// ReleaseRunning hands a claimed task back to its lane without spending a
// retry. Used when a run is interrupted by shutdown.
func (s *Store) ReleaseRunning(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusQueued, toMillis(s.Now()), id, StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("release running task: %w", err)
	}
	return s.requireTransition(ctx, res, id, StatusQueued)
}

func (s *Store) requireTransition(ctx context.Context, res sql.Result, id int64, target Status) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	rec, err := s.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w: %d", ErrTaskNotFound, id)
	}
	return fmt.Errorf("%w: task %d is %s, cannot become %s", ErrInvalidTransition, id, rec.Status, target)
}
