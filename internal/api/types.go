package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Task describes a queued task in a transport-friendly format.
type Task struct {
	ID            int64           `json:"id"`
	Lane          string          `json:"lane"`
	Kind          string          `json:"kind"`
	Category      int64           `json:"category"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	Priority      int             `json:"priority"`
	RetryCount    int             `json:"retryCount"`
	RetryLimit    int             `json:"retryLimit"`
	QueuedAt      string          `json:"queuedAt,omitempty"`
	RetryAt       string          `json:"retryAt,omitempty"`
	UpdatedAt     string          `json:"updatedAt,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
	Failure       *Failure        `json:"failure,omitempty"`
	EventCount    int             `json:"eventCount"`
	Payload       json.RawMessage `json:"payload,omitempty"`
}

// Event describes a stored event.
type Event struct {
	ID          int64           `json:"id"`
	TaskID      *int64          `json:"taskId,omitempty"`
	Description string          `json:"description"`
	CreatedAt   string          `json:"createdAt,omitempty"`
	Failure     *Failure        `json:"failure,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Failure is a decoded exception blob.
type Failure struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Lane describes a live lane worker.
type Lane struct {
	Name       string `json:"name"`
	ActiveTask *Task  `json:"activeTask,omitempty"`
	RunID      string `json:"runId,omitempty"`
	Since      string `json:"since,omitempty"`
}

// ManagerStatus summarizes queue manager execution state.
type ManagerStatus struct {
	Running    bool           `json:"running"`
	Lanes      []Lane         `json:"lanes"`
	QueueStats map[string]int `json:"queueStats"`
	LastError  string         `json:"lastError,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool          `json:"running"`
	PID          int           `json:"pid"`
	QueueDBPath  string        `json:"queueDbPath"`
	LockFilePath string        `json:"lockFilePath"`
	APIBind      string        `json:"apiBind,omitempty"`
	Kinds        []string      `json:"kinds"`
	Manager      ManagerStatus `json:"manager"`
}

// EnqueueRequest asks for a new task of a registered kind. Params is the
// kind-specific JSON body.
type EnqueueRequest struct {
	Kind       string          `json:"kind" validate:"required,max=64"`
	Lane       string          `json:"lane,omitempty" validate:"omitempty,max=64"`
	Priority   int             `json:"priority,omitempty" validate:"gte=-1000,lte=1000"`
	Category   int64           `json:"category,omitempty" validate:"gte=0"`
	RetryLimit *int            `json:"retryLimit,omitempty" validate:"omitempty,gte=0,lte=100"`
	Params     json.RawMessage `json:"params,omitempty"`
}

// TaskQuery filters task listings.
type TaskQuery struct {
	Category *int64   `json:"category,omitempty"`
	Statuses []string `json:"statuses,omitempty"`
	Lane     string   `json:"lane,omitempty"`
	Limit    int      `json:"limit,omitempty"`
}

// CleanupResult reports rows removed by a maintenance pass.
type CleanupResult struct {
	TasksRemoved  int64 `json:"tasksRemoved"`
	EventsRemoved int64 `json:"eventsRemoved"`
}

// TaskListResponse wraps a collection of tasks for API responses.
type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task Task `json:"task"`
}

// EventListResponse wraps a collection of events.
type EventListResponse struct {
	Events []Event `json:"events"`
}

// Change is one task or event notification, as streamed to HTTP clients.
type Change struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	ID     int64  `json:"id,omitempty"`
	Task   *Task  `json:"task,omitempty"`
	Event  *Event `json:"event,omitempty"`
}
