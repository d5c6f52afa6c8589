package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// CreateQueue inserts the named lane if it does not exist yet and returns its row.
func (s *Store) CreateQueue(ctx context.Context, name string) (*QueueDescriptor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("create queue: empty name")
	}
	if _, err := s.execWithRetry(ctx, `INSERT OR IGNORE INTO queues (name) VALUES (?)`, name); err != nil {
		return nil, fmt.Errorf("create queue %q: %w", name, err)
	}
	desc := &QueueDescriptor{Name: name}
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT id FROM queues WHERE name = ?`, name).Scan(&desc.ID); err != nil {
		return nil, fmt.Errorf("load queue %q: %w", name, err)
	}
	return desc, nil
}

// Queues returns every known lane ordered by id.
func (s *Store) Queues(ctx context.Context) ([]QueueDescriptor, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT id, name FROM queues ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var queues []QueueDescriptor
	for rows.Next() {
		var q QueueDescriptor
		if err := rows.Scan(&q.ID, &q.Name); err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		queues = append(queues, q)
	}
	return queues, rows.Err()
}

func queueIDTx(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM queues WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownQueue, name)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup queue %q: %w", name, err)
	}
	return id, nil
}
