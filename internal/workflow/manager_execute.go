package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"taskq/internal/logging"
	"taskq/internal/queue"
	"taskq/internal/task"
)

type runOutcome struct {
	ok       bool
	err      error
	duration time.Duration
}

func (m *Manager) execute(ctx context.Context, w *laneWorker, claim *activeTask) {
	rec := claim.record
	info := task.RunInfo{
		TaskID:  rec.ID,
		Lane:    w.name,
		RunID:   claim.runID,
		Attempt: rec.RetryCount + 1,
	}
	rc, done := task.NewContext(ctx, claim.task, info, m.runLogger(), m.eventSink(rec.ID))
	logger := rc.Logger

	logger.Info("task started", logging.Args(append(taskAttrs(claim),
		logging.Int("attempt", info.Attempt),
		logging.String(logging.FieldEventType, "task_started"),
	)...)...)

	ok, err := runSafely(rc, claim.task)
	done()
	out := runOutcome{ok: ok, err: err, duration: time.Since(claim.started)}
	// A failed outcome write leaves the task claimed by this lane; keep
	// retrying so the row does not stay running with no worker behind it.
	for !m.finish(ctx, w, claim, out) {
		if ctx.Err() != nil {
			m.mu.Lock()
			w.active = nil
			m.mu.Unlock()
			return
		}
		m.waitForWork(ctx, w, m.errorRetryDelay)
	}
}

// runSafely calls Run and converts a panic into a *task.PanicError.
func runSafely(rc *task.Context, t task.Task) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			err = &task.PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return t.Run(rc)
}

// finish persists the outcome of a run and reports whether it was stored.
// It holds the manager lock so a concurrent DeleteTask either sees the task
// active (and aborts it) or sees the final row. The claim is released only
// once the outcome is stored.
func (m *Manager) finish(ctx context.Context, w *laneWorker, claim *activeTask, out runOutcome) (persisted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() {
		if persisted {
			w.active = nil
		}
	}()

	rec := claim.record
	logger := logging.WithContext(logging.WithRunID(logging.WithTaskID(ctx, rec.ID), claim.runID), w.logger)
	attrs := append(taskAttrs(claim), logging.Duration("duration", out.duration))
	// Outcome writes must land even when Stop has cancelled the run context.
	pctx := context.WithoutCancel(ctx)

	if claim.task.IsAborting() {
		if _, err := m.store.DeleteTask(pctx, rec.ID); err != nil {
			return m.outcomeFailed(logger, "delete aborted task", err)
		}
		logger.Info("aborted task deleted", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "task_deleted"),
		)...)...)
		m.notifier.taskChanged(TaskDeleted, rec.ID, nil)
		return true
	}

	if !out.ok && isShutdown(ctx, out.err) {
		if err := m.store.ReleaseRunning(pctx, rec.ID); err != nil {
			return m.outcomeFailed(logger, "release interrupted task", err)
		}
		logger.Info("task interrupted by shutdown; returned to queue", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "task_released"),
		)...)...)
		return true
	}

	payload := m.encodePayload(logger, claim.task)

	switch {
	case out.err != nil:
		failure := task.NewFailure(out.err)
		exception := failure.Encode()
		reason := out.err.Error()
		if err := m.store.MarkFailed(pctx, rec.ID, payload, reason, exception); err != nil {
			return m.outcomeFailed(logger, "mark task failed", err)
		}
		logger.Error("task failed", logging.Args(append(attrs,
			logging.Error(out.err),
			logging.String(logging.FieldEventType, "task_failed"),
			logging.String(logging.FieldErrorHint, "inspect the task events for the captured failure"),
		)...)...)
		m.recordFailureEvent(pctx, logger, rec, fmt.Sprintf("%s: %s", rec.Description, reason), exception)
		m.notifyFinal(pctx, TaskCompleted, rec.ID)

	case out.ok:
		if err := m.store.MarkComplete(pctx, rec.ID, payload); err != nil {
			return m.outcomeFailed(logger, "mark task complete", err)
		}
		logger.Info("task completed", logging.Args(append(attrs,
			logging.String(logging.FieldEventType, "task_completed"),
		)...)...)
		m.notifyFinal(pctx, TaskCompleted, rec.ID)

	default:
		status, err := m.store.MarkRequeue(pctx, rec.ID, payload, m.backoff.Delay)
		if err != nil {
			return m.outcomeFailed(logger, "requeue task", err)
		}
		if status == queue.StatusFailed {
			logging.WarnWithContext(logger, "task exhausted its retries", "task_retries_exhausted", append(attrs,
				logging.String(logging.FieldErrorHint, "retry the task manually once the cause is fixed"),
				logging.String(logging.FieldImpact, "task will not run again automatically"),
			)...)
			m.recordFailureEvent(pctx, logger, rec, fmt.Sprintf("%s: %s", rec.Description, queue.RetryLimitExceededReason), nil)
			m.notifyFinal(pctx, TaskCompleted, rec.ID)
			return true
		}
		logger.Info("task requeued", logging.Args(append(attrs,
			logging.Duration("retry_in", m.backoff.Delay(rec.RetryCount+1)),
			logging.String(logging.FieldEventType, "task_requeued"),
		)...)...)
		m.notifyFinal(pctx, TaskWaiting, rec.ID)
	}
	return true
}

func (m *Manager) encodePayload(logger *slog.Logger, t task.Task) []byte {
	payload, err := m.registry.Encode(t)
	if err != nil {
		logger.Warn("task state could not be re-encoded; keeping stored payload",
			logging.Error(err),
			logging.String(logging.FieldEventType, "task_encode_failed"),
			logging.String(logging.FieldErrorHint, "check the task's JSON fields"),
		)
		return nil
	}
	return payload
}

func (m *Manager) recordFailureEvent(ctx context.Context, logger *slog.Logger, rec *queue.TaskRecord, description string, exception []byte) {
	id := rec.ID
	event, err := m.store.StoreEvent(ctx, &id, queue.NewEvent{Description: description, Exception: exception})
	if err != nil {
		logger.Warn("failure event not recorded",
			logging.Error(err),
			logging.String(logging.FieldEventType, "event_store_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
		return
	}
	if event != nil {
		m.notifier.eventChanged(EventCreated, event.ID, event)
	}
}

func (m *Manager) notifyFinal(ctx context.Context, action TaskAction, id int64) {
	rec, err := m.store.GetTask(ctx, id)
	if err != nil {
		m.logger.Debug("task reload for notification failed", logging.Error(err))
	}
	m.notifier.taskChanged(action, id, rec)
}

// outcomeFailed handles an outcome write error. A row that no longer exists
// has nothing left to write and counts as settled; any other error is
// recorded and reported as not persisted. The caller must hold m.mu.
func (m *Manager) outcomeFailed(logger *slog.Logger, op string, err error) bool {
	if errors.Is(err, queue.ErrTaskNotFound) {
		logger.Warn("task row vanished before its outcome was stored",
			logging.String("operation", op),
			logging.String(logging.FieldEventType, "task_outcome_dropped"),
		)
		return true
	}
	m.persistFailed(logger, op, err)
	return false
}

// persistFailed records a storage failure. The caller must hold m.mu.
func (m *Manager) persistFailed(logger *slog.Logger, op string, err error) {
	m.lastErr = err
	logger.Error("failed to persist task outcome",
		logging.String("operation", op),
		logging.Error(err),
		logging.String(logging.FieldEventType, "task_persist_failed"),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
}

// eventSink lets a running task record events through the manager so
// listeners see them.
func (m *Manager) eventSink(taskID int64) task.EventSink {
	return func(ctx context.Context, description string, payload []byte) error {
		id := taskID
		_, err := m.StoreEvent(ctx, &id, queue.NewEvent{Description: description, Payload: payload})
		return err
	}
}
