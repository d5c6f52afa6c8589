package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskq/internal/logging"
	"taskq/internal/queue"
	"taskq/internal/task"
)

// DeleteResult reports what DeleteTask did.
type DeleteResult struct {
	TaskID int64
	// Deferred is true when the task was running: it has been aborted and
	// its worker deletes it once Run returns.
	Deferred      bool
	EventsRemoved int64
}

// Enqueue persists t on lane (the default lane when empty) and wakes the
// lane's worker, starting one if needed.
func (m *Manager) Enqueue(ctx context.Context, t task.Task, lane string) (*queue.TaskRecord, error) {
	if t == nil {
		return nil, errors.New("enqueue: nil task")
	}
	lane = strings.TrimSpace(lane)
	if lane == "" {
		lane = m.defaultLane
	}
	payload, err := m.registry.Encode(t)
	if err != nil {
		return nil, fmt.Errorf("enqueue: %w", err)
	}
	rec, err := m.store.Enqueue(ctx, lane, queue.NewTask{
		Kind:        t.Kind(),
		Category:    t.Category(),
		Description: t.Description(),
		Priority:    t.Priority(),
		RetryLimit:  t.RetryLimit(),
		Payload:     payload,
	})
	if err != nil {
		return nil, err
	}
	m.notifier.taskChanged(TaskCreated, rec.ID, rec)

	m.mu.Lock()
	m.ensureLaneLocked(lane)
	m.mu.Unlock()

	m.logger.Debug("task enqueued", logging.Args(logging.TaskFields(rec.ID, rec.Kind, lane)...)...)
	return rec, nil
}

// DeleteTask removes a task and its events. A task that is currently running
// is aborted instead and removed by its worker once Run returns.
func (m *Manager) DeleteTask(ctx context.Context, id int64) (DeleteResult, error) {
	m.mu.Lock()
	if w := m.holderLocked(id); w != nil {
		w.active.task.Abort()
		m.mu.Unlock()
		m.logger.Info("running task aborted; delete deferred until it returns",
			logging.Int64(logging.FieldTaskID, id),
			logging.String(logging.FieldLane, w.name),
			logging.String(logging.FieldEventType, "task_abort_requested"),
		)
		return DeleteResult{TaskID: id, Deferred: true}, nil
	}
	events, err := m.store.DeleteTask(ctx, id)
	m.mu.Unlock()
	if err != nil {
		return DeleteResult{}, err
	}

	m.notifier.taskChanged(TaskDeleted, id, nil)
	if events > 0 {
		m.notifier.eventChanged(EventDeleted, 0, nil)
	}
	m.purgeOrphans(ctx)
	return DeleteResult{TaskID: id, EventsRemoved: events}, nil
}

// holderLocked returns the worker running task id, if any. The caller must
// hold m.mu.
func (m *Manager) holderLocked(id int64) *laneWorker {
	for _, w := range m.workers {
		if w.active != nil && w.active.record.ID == id {
			return w
		}
	}
	return nil
}

// UpdateTask re-serializes t into the stored row id. A running task cannot be
// updated: its worker writes the in-memory task back when Run returns.
func (m *Manager) UpdateTask(ctx context.Context, id int64, t task.Task) (*queue.TaskRecord, error) {
	payload, err := m.registry.Encode(t)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	m.mu.Lock()
	if w := m.holderLocked(id); w != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("update task %d: %w on lane %s", id, ErrTaskRunning, w.name)
	}
	err = m.store.UpdatePayload(ctx, id, payload, t.Description())
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}
	rec, err := m.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	m.notifier.taskChanged(TaskUpdated, id, rec)
	return rec, nil
}

// StoreEvent records an event, optionally tied to a task. It returns nil
// without error when the referenced task no longer exists.
func (m *Manager) StoreEvent(ctx context.Context, taskID *int64, event queue.NewEvent) (*queue.EventRecord, error) {
	rec, err := m.store.StoreEvent(ctx, taskID, event)
	if err != nil || rec == nil {
		return rec, err
	}
	m.notifier.eventChanged(EventCreated, rec.ID, rec)
	if taskID != nil {
		m.notifier.taskChanged(TaskUpdated, *taskID, nil)
	}
	return rec, nil
}

// DeleteEvent removes one event and purges orphans.
func (m *Manager) DeleteEvent(ctx context.Context, id int64) error {
	if err := m.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	m.notifier.eventChanged(EventDeleted, id, nil)
	m.purgeOrphans(ctx)
	return nil
}

// RetryTask puts a failed task back on its lane with a fresh retry budget.
func (m *Manager) RetryTask(ctx context.Context, id int64) (*queue.TaskRecord, error) {
	if err := m.store.RetryFailed(ctx, id); err != nil {
		return nil, err
	}
	rec, err := m.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %d", queue.ErrTaskNotFound, id)
	}
	m.notifier.taskChanged(TaskUpdated, id, rec)

	m.mu.Lock()
	m.ensureLaneLocked(rec.QueueName)
	m.mu.Unlock()
	return rec, nil
}

// CleanupOldEvents removes events older than the retention period, then
// orphans.
func (m *Manager) CleanupOldEvents(ctx context.Context) (queue.CleanupResult, error) {
	m.mu.Lock()
	n, err := m.store.CleanupOldEvents(ctx, m.retention)
	if err != nil {
		m.mu.Unlock()
		return queue.CleanupResult{}, err
	}
	result := queue.CleanupResult{Events: n}
	orphans, err := m.store.CleanupOrphanEvents(ctx)
	m.mu.Unlock()
	if err != nil {
		return result, err
	}
	result = result.Add(orphans)
	m.notifyCleanup(result)
	return result, nil
}

// CleanupOldTasks removes finished tasks older than the retention period
// with their events, then orphans.
func (m *Manager) CleanupOldTasks(ctx context.Context) (queue.CleanupResult, error) {
	// Deletes share the lock with claims so a lane never picks a row that
	// is removed before it can be marked running.
	m.mu.Lock()
	result, err := m.store.CleanupOldTasks(ctx, m.retention)
	if err != nil {
		m.mu.Unlock()
		return queue.CleanupResult{}, err
	}
	orphans, err := m.store.CleanupOrphanEvents(ctx)
	m.mu.Unlock()
	if err != nil {
		return result, err
	}
	result = result.Add(orphans)
	m.notifyCleanup(result)
	return result, nil
}

// Cleanup runs both retention passes.
func (m *Manager) Cleanup(ctx context.Context) (queue.CleanupResult, error) {
	events, err := m.CleanupOldEvents(ctx)
	if err != nil {
		return events, err
	}
	tasks, err := m.CleanupOldTasks(ctx)
	total := events.Add(tasks)
	if err != nil {
		return total, err
	}
	if total.Tasks > 0 || total.Events > 0 {
		m.logger.Info("retention cleanup removed rows",
			logging.Int64("tasks", total.Tasks),
			logging.Int64("events", total.Events),
			logging.String(logging.FieldEventType, "cleanup_completed"),
		)
	}
	return total, nil
}

func (m *Manager) purgeOrphans(ctx context.Context) {
	m.mu.Lock()
	result, err := m.store.CleanupOrphanEvents(ctx)
	m.mu.Unlock()
	if err != nil {
		logging.WarnWithContext(m.logger, "orphan purge failed", "orphan_purge_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "orphaned events remain until the next cleanup"),
		)
		return
	}
	m.notifyCleanup(result)
}

func (m *Manager) notifyCleanup(result queue.CleanupResult) {
	if result.Tasks > 0 {
		m.notifier.taskChanged(TaskDeleted, 0, nil)
	}
	if result.Events > 0 {
		m.notifier.eventChanged(EventDeleted, 0, nil)
	}
}

// HasActiveTasks reports whether any unfinished task belongs to category.
func (m *Manager) HasActiveTasks(ctx context.Context, category int64) (bool, error) {
	return m.store.HasActiveTasks(ctx, category)
}

// Task returns one task, or nil when it does not exist.
func (m *Manager) Task(ctx context.Context, id int64) (*queue.TaskRecord, error) {
	return m.store.GetTask(ctx, id)
}

// Tasks lists tasks with their event counts.
func (m *Manager) Tasks(ctx context.Context, filter queue.TaskFilter) ([]queue.TaskSummary, error) {
	return m.store.ListTasks(ctx, filter)
}

// Events lists events, all of them when taskID is nil.
func (m *Manager) Events(ctx context.Context, taskID *int64) ([]queue.EventRecord, error) {
	return m.store.ListEvents(ctx, taskID)
}

// ActiveTask returns a snapshot of the task the lane is running, or nil.
func (m *Manager) ActiveTask(lane string) *queue.TaskRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workers[lane]
	if !ok || w.active == nil {
		return nil
	}
	snapshot := *w.active.record
	return &snapshot
}
