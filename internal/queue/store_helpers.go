package queue

import (
	"database/sql"
	"time"
)

const taskColumns = "t.id, t.queue_id, q.name, t.kind, t.category, t.description, t.queued_at, t.priority, t.status, t.retry_at, t.retry_count, t.retry_limit, t.failure_reason, t.exception, t.payload, t.updated_at"

const taskFrom = " FROM tasks t JOIN queues q ON q.id = t.queue_id"

const eventColumns = "id, task_id, description, exception, payload, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(scanner rowScanner, extra ...any) (*TaskRecord, error) {
	var (
		rec           TaskRecord
		statusStr     string
		queuedAt      int64
		retryAt       int64
		updatedAt     int64
		failureReason sql.NullString
	)
	dest := []any{
		&rec.ID,
		&rec.QueueID,
		&rec.QueueName,
		&rec.Kind,
		&rec.Category,
		&rec.Description,
		&queuedAt,
		&rec.Priority,
		&statusStr,
		&retryAt,
		&rec.RetryCount,
		&rec.RetryLimit,
		&failureReason,
		&rec.Exception,
		&rec.Payload,
		&updatedAt,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	rec.Status = Status(statusStr)
	rec.QueuedAt = fromMillis(queuedAt)
	rec.RetryAt = fromMillis(retryAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	rec.FailureReason = failureReason.String
	return &rec, nil
}

func scanEvent(scanner rowScanner) (*EventRecord, error) {
	var (
		ev        EventRecord
		taskID    sql.NullInt64
		createdAt int64
	)
	if err := scanner.Scan(&ev.ID, &taskID, &ev.Description, &ev.Exception, &ev.Payload, &createdAt); err != nil {
		return nil, err
	}
	if taskID.Valid {
		id := taskID.Int64
		ev.TaskID = &id
	}
	ev.CreatedAt = fromMillis(createdAt)
	return &ev, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableBytes(value []byte) any {
	if len(value) == 0 {
		return nil
	}
	return value
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
