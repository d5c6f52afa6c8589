package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// StoreEvent appends an event. When taskID is set and the task no longer
// exists the insert is skipped and (nil, nil) is returned.
func (s *Store) StoreEvent(ctx context.Context, taskID *int64, event NewEvent) (*EventRecord, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(event.Description) == "" {
		return nil, errors.New("store event: description is required")
	}
	now := s.Now()

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id = 0
		if taskID != nil {
			var exists int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM tasks WHERE id = ?`, *taskID).Scan(&exists); err != nil {
				return fmt.Errorf("check event task: %w", err)
			}
			if exists == 0 {
				return nil
			}
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO events (task_id, description, exception, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
			nullableID(taskID), event.Description, nullableBytes(event.Exception), nullableBytes(event.Payload), toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("insert event: %w", err)
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
	if id == 0 {
		return nil, nil
	}
	return s.GetEvent(ctx, id)
}

// GetEvent fetches an event by identifier. It returns nil when the row does not exist.
func (s *Store) GetEvent(ctx context.Context, id int64) (*EventRecord, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// DeleteEvent removes a single event.
func (s *Store) DeleteEvent(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	return nil
}

// AllEvents returns every event, newest first.
func (s *Store) AllEvents(ctx context.Context) ([]EventRecord, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events ORDER BY created_at DESC, id DESC`)
}

// EventsForTask returns the events that reference a task, newest first.
func (s *Store) EventsForTask(ctx context.Context, taskID int64) ([]EventRecord, error) {
	return s.queryEvents(ctx, `SELECT `+eventColumns+` FROM events WHERE task_id = ? ORDER BY created_at DESC, id DESC`, taskID)
}

// ListEvents returns EventsForTask when taskID is set and AllEvents otherwise.
func (s *Store) ListEvents(ctx context.Context, taskID *int64) ([]EventRecord, error) {
	if taskID != nil {
		return s.EventsForTask(ctx, *taskID)
	}
	return s.AllEvents(ctx)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]EventRecord, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []EventRecord
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}
