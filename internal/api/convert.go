package api

import (
	"encoding/json"
	"time"

	"taskq/internal/queue"
	"taskq/internal/task"
	"taskq/internal/workflow"
)

// FromTaskRecord converts a task row to its API representation.
func FromTaskRecord(rec *queue.TaskRecord) Task {
	if rec == nil {
		return Task{}
	}
	dto := Task{
		ID:            rec.ID,
		Lane:          rec.QueueName,
		Kind:          rec.Kind,
		Category:      rec.Category,
		Description:   rec.Description,
		Status:        string(rec.Status),
		Priority:      rec.Priority,
		RetryCount:    rec.RetryCount,
		RetryLimit:    rec.RetryLimit,
		QueuedAt:      formatTime(rec.QueuedAt),
		RetryAt:       formatTime(rec.RetryAt),
		UpdatedAt:     formatTime(rec.UpdatedAt),
		FailureReason: rec.FailureReason,
		Failure:       decodeFailure(rec.Exception),
	}
	if json.Valid(rec.Payload) {
		dto.Payload = json.RawMessage(rec.Payload)
	}
	return dto
}

// FromTaskSummaries converts listed tasks, keeping their event counts.
func FromTaskSummaries(rows []queue.TaskSummary) []Task {
	out := make([]Task, 0, len(rows))
	for i := range rows {
		dto := FromTaskRecord(&rows[i].TaskRecord)
		dto.EventCount = rows[i].EventCount
		out = append(out, dto)
	}
	return out
}

// FromEventRecord converts an event row to its API representation.
func FromEventRecord(rec *queue.EventRecord) Event {
	if rec == nil {
		return Event{}
	}
	dto := Event{
		ID:          rec.ID,
		TaskID:      rec.TaskID,
		Description: rec.Description,
		CreatedAt:   formatTime(rec.CreatedAt),
		Failure:     decodeFailure(rec.Exception),
	}
	if len(rec.Payload) > 0 && json.Valid(rec.Payload) {
		dto.Payload = json.RawMessage(rec.Payload)
	}
	return dto
}

// FromEventRecords converts a slice of events.
func FromEventRecords(rows []queue.EventRecord) []Event {
	out := make([]Event, 0, len(rows))
	for i := range rows {
		out = append(out, FromEventRecord(&rows[i]))
	}
	return out
}

// FromStatusSummary converts a manager status summary to its API payload.
func FromStatusSummary(summary workflow.StatusSummary) ManagerStatus {
	status := ManagerStatus{
		Running:    summary.Running,
		Lanes:      make([]Lane, 0, len(summary.Lanes)),
		QueueStats: MergeQueueStats(summary.QueueStats),
		LastError:  summary.LastError,
	}
	for _, lane := range summary.Lanes {
		dto := Lane{Name: lane.Name, RunID: lane.RunID, Since: formatTime(lane.Since)}
		if lane.Active != nil {
			active := FromTaskRecord(lane.Active)
			active.Payload = nil
			dto.ActiveTask = &active
		}
		status.Lanes = append(status.Lanes, dto)
	}
	return status
}

// MergeQueueStats reports a count for every known status, zero included.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// FromTaskChange converts a listener notification.
func FromTaskChange(change workflow.TaskChange) Change {
	dto := Change{Type: "task", Action: string(change.Action), ID: change.TaskID}
	if change.Task != nil {
		t := FromTaskRecord(change.Task)
		t.Payload = nil
		dto.Task = &t
	}
	return dto
}

// FromEventChange converts a listener notification.
func FromEventChange(change workflow.EventChange) Change {
	dto := Change{Type: "event", Action: string(change.Action), ID: change.EventID}
	if change.Event != nil {
		e := FromEventRecord(change.Event)
		dto.Event = &e
	}
	return dto
}

func decodeFailure(blob []byte) *Failure {
	if len(blob) == 0 {
		return nil
	}
	f, err := task.DecodeFailure(blob)
	if err != nil {
		return &Failure{Type: "unreadable", Message: string(blob)}
	}
	return &Failure{Type: f.Type, Message: f.Message, Stack: f.Stack}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses an API timestamp; it returns the zero time when value is
// empty or malformed.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	return time.Time{}
}
