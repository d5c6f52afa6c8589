package ipc

import "taskq/internal/api"

// Task mirrors the HTTP API task DTO for IPC callers.
type Task = api.Task

// Event mirrors the HTTP API event DTO for IPC callers.
type Event = api.Event

// StartRequest starts lane processing.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops lane processing.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse is the combined daemon and manager status.
type StatusResponse = api.DaemonStatus

// EnqueueRequest asks for a new task.
type EnqueueRequest = api.EnqueueRequest

// EnqueueResponse carries the stored task.
type EnqueueResponse struct {
	Task Task `json:"task"`
}

// ListRequest filters the task listing.
type ListRequest = api.TaskQuery

// ListResponse contains tasks, newest first.
type ListResponse struct {
	Tasks []Task `json:"tasks"`
}

// DescribeRequest fetches a single task by id.
type DescribeRequest struct {
	ID int64 `json:"id"`
}

// DescribeResponse returns the task.
type DescribeResponse struct {
	Task Task `json:"task"`
}

// DeleteRequest removes tasks by id.
type DeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// DeleteResponse reports per-id outcomes.
type DeleteResponse = api.DeleteTasksResult

// RetryRequest requeues failed tasks by id.
type RetryRequest struct {
	IDs []int64 `json:"ids"`
}

// RetryResponse reports per-id outcomes.
type RetryResponse = api.RetryTasksResult

// EventsRequest lists events, optionally for one task.
type EventsRequest struct {
	TaskID *int64 `json:"task_id,omitempty"`
}

// EventsResponse contains events, newest first.
type EventsResponse struct {
	Events []Event `json:"events"`
}

// DeleteEventRequest removes one event.
type DeleteEventRequest struct {
	ID int64 `json:"id"`
}

// DeleteEventResponse confirms removal.
type DeleteEventResponse struct {
	Deleted bool `json:"deleted"`
}

// CleanupRequest runs the retention passes now.
type CleanupRequest struct{}

// CleanupResponse reports removed rows.
type CleanupResponse = api.CleanupResult

// ActiveRequest asks whether a category has unfinished tasks.
type ActiveRequest struct {
	Category int64 `json:"category"`
}

// ActiveResponse answers ActiveRequest.
type ActiveResponse struct {
	Active bool `json:"active"`
}

// QueueHealthRequest fetches aggregate queue counts.
type QueueHealthRequest struct{}

// QueueHealthResponse summarises queue counts by state.
type QueueHealthResponse struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Running  int `json:"running"`
	Failed   int `json:"failed"`
	Complete int `json:"complete"`
	Events   int `json:"events"`
}

// DatabaseHealthRequest fetches database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse captures database diagnostics.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    int      `json:"schema_version"`
	MissingTables    []string `json:"missing_tables"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalTasks       int      `json:"total_tasks"`
	TotalEvents      int      `json:"total_events"`
	Error            string   `json:"error"`
}
