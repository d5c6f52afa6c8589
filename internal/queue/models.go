package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a task row.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusRunning  Status = "running"
	StatusWaiting  Status = "waiting"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusWaiting,
	StatusComplete,
	StatusFailed,
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsPending reports whether a lane worker may still pick the task up.
func (s Status) IsPending() bool {
	return s == StatusQueued || s == StatusWaiting
}

// IsTerminal reports whether the task has finished for good.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// QueueDescriptor is one named lane.
type QueueDescriptor struct {
	ID   int64
	Name string
}

// NewTask carries the caller-supplied fields for an insert.
type NewTask struct {
	Kind        string
	Category    int64
	Description string
	Priority    int
	RetryLimit  int
	Payload     []byte
}

// TaskRecord represents a task row persisted in SQLite.
type TaskRecord struct {
	ID            int64
	QueueID       int64
	QueueName     string
	Kind          string
	Category      int64
	Description   string
	QueuedAt      time.Time
	Priority      int
	Status        Status
	RetryAt       time.Time
	RetryCount    int
	RetryLimit    int
	FailureReason string
	Exception     []byte
	Payload       []byte
	UpdatedAt     time.Time
}

// CanRetry reports whether another requeue stays within the retry limit.
func (t TaskRecord) CanRetry() bool {
	return t.RetryCount < t.RetryLimit
}

// TaskSummary is a TaskRecord annotated with the number of events that reference it.
type TaskSummary struct {
	TaskRecord
	EventCount int
}

// TaskFilter narrows ListTasks results. Zero values match everything.
type TaskFilter struct {
	Category *int64
	Statuses []Status
	Lane     string
	Limit    int
}

// ScheduledTask is the next candidate for a lane. Wait is zero when the task
// may run immediately, otherwise the time until its retry deadline.
type ScheduledTask struct {
	Record *TaskRecord
	Wait   time.Duration
}

// Ready reports whether the task can be claimed now.
func (s ScheduledTask) Ready() bool {
	return s.Wait <= 0
}

// NewEvent carries the caller-supplied fields for an event insert.
type NewEvent struct {
	Description string
	Exception   []byte
	Payload     []byte
}

// EventRecord is an immutable log entry, optionally tied to a task.
type EventRecord struct {
	ID          int64
	TaskID      *int64
	Description string
	Exception   []byte
	Payload     []byte
	CreatedAt   time.Time
}

// CleanupResult reports how many rows a maintenance pass removed.
type CleanupResult struct {
	Tasks  int64
	Events int64
}

// Add accumulates the counts from another pass.
func (r CleanupResult) Add(other CleanupResult) CleanupResult {
	return CleanupResult{Tasks: r.Tasks + other.Tasks, Events: r.Events + other.Events}
}

// HealthSummary describes aggregated task counts per lifecycle state.
type HealthSummary struct {
	Total    int
	Pending  int
	Running  int
	Failed   int
	Complete int
	Events   int
}

// DatabaseHealth captures diagnostic information about the task database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	MissingTables    []string
	IntegrityCheck   bool
	TotalTasks       int
	TotalEvents      int
	Error            string
}
