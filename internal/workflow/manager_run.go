package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taskq/internal/logging"
	"taskq/internal/queue"
	"taskq/internal/task"
)

type laneWorker struct {
	name   string
	wake   chan struct{}
	logger *slog.Logger

	// active is guarded by Manager.mu.
	active *activeTask
}

type activeTask struct {
	record  *queue.TaskRecord
	task    task.Task
	runID   string
	started time.Time
}

func newLaneWorker(name string, logger *slog.Logger) *laneWorker {
	return &laneWorker{name: name, wake: make(chan struct{}, 1), logger: logger}
}

// signal wakes the worker if it is waiting for a deadline. Signals coalesce.
func (w *laneWorker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) runLane(ctx context.Context, w *laneWorker) {
	defer m.wg.Done()
	w.logger.Debug("lane worker started")

	for {
		if ctx.Err() != nil {
			m.detachLane(w)
			return
		}

		claim, wait, drained, err := m.claimNext(ctx, w)
		if err != nil {
			if ctx.Err() != nil {
				m.detachLane(w)
				return
			}
			m.setLastError(err)
			w.logger.Error("failed to claim next task",
				logging.Error(err),
				logging.String(logging.FieldEventType, "task_claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.waitForWork(ctx, w, m.errorRetryDelay)
			continue
		}
		if drained {
			w.logger.Debug("lane drained; worker exiting")
			return
		}
		if claim == nil {
			m.waitForWork(ctx, w, wait)
			continue
		}
		m.execute(ctx, w, claim)
	}
}

// claimNext picks the lane's next task while holding the manager lock. It
// returns the claimed task, or the time until the earliest pending task is
// due, or drained=true after deregistering the worker when the lane has no
// pending rows left.
func (m *Manager) claimNext(ctx context.Context, w *laneWorker) (*activeTask, time.Duration, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := m.store.NextReadyTask(ctx, w.name)
	if err != nil {
		return nil, 0, false, err
	}
	if next == nil {
		m.removeLaneLocked(w)
		return nil, 0, true, nil
	}
	if !next.Ready() {
		return nil, next.Wait, false, nil
	}

	rec := next.Record
	t, decodeErr := m.registry.Decode(rec.Payload)
	if decodeErr != nil {
		logging.WarnWithContext(w.logger, "stored task could not be decoded", "task_decode_failed",
			logging.Int64(logging.FieldTaskID, rec.ID),
			logging.Error(decodeErr),
			logging.String(logging.FieldErrorHint, "the task kind may have been removed or changed"),
			logging.String(logging.FieldImpact, "task will be marked failed"),
		)
	}
	if err := m.store.MarkRunning(ctx, rec.ID); err != nil {
		return nil, 0, false, err
	}
	rec.Status = queue.StatusRunning

	claim := &activeTask{record: rec, task: t, runID: uuid.NewString(), started: time.Now()}
	w.active = claim
	m.notifier.taskChanged(TaskRunning, rec.ID, rec)
	return claim, 0, false, nil
}

func (m *Manager) waitForWork(ctx context.Context, w *laneWorker, wait time.Duration) {
	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-w.wake:
	case <-timer.C:
	}
}

func (m *Manager) detachLane(w *laneWorker) {
	m.mu.Lock()
	m.removeLaneLocked(w)
	m.mu.Unlock()
}

func isShutdown(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled))
}
