package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is recorded in schema_version when the tables are created.
const schemaVersion = 1

// requiredTables must all exist for the store to operate.
var requiredTables = []string{"queues", "tasks", "events"}

// ErrSchemaMismatch means the database was written by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrSchemaIncomplete means schema_version is present but task tables are missing.
var ErrSchemaIncomplete = errors.New("schema incomplete")

func (s *Store) initSchema(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		exists, err := tableExists(ctx, tx, "schema_version")
		if err != nil {
			return err
		}
		if !exists {
			if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
				return fmt.Errorf("record schema version: %w", err)
			}
			return nil
		}

		var version int
		if err := tx.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if version != schemaVersion {
			return fmt.Errorf("%w: %s has version %d, taskq expects %d (move the file aside to start fresh)",
				ErrSchemaMismatch, s.path, version, schemaVersion)
		}

		missing, err := missingTables(ctx, tx)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s lacks %s", ErrSchemaIncomplete, s.path, strings.Join(missing, ", "))
		}
		return nil
	})
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q rowQuerier, name string) (bool, error) {
	var count int
	row := q.QueryRowContext(ctx, "SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?", name)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("query table %s: %w", name, err)
	}
	return count > 0, nil
}

func missingTables(ctx context.Context, q rowQuerier) ([]string, error) {
	var missing []string
	for _, table := range requiredTables {
		ok, err := tableExists(ctx, q, table)
		if err != nil {
			return nil, err
		}
		if !ok {
			missing = append(missing, table)
		}
	}
	return missing, nil
}
