package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"taskq/internal/logging"
)

// EventSink persists an event on behalf of the running task.
type EventSink func(ctx context.Context, description string, payload []byte) error

// RunInfo identifies one execution attempt.
type RunInfo struct {
	TaskID int64
	Lane   string
	RunID  string
	// Attempt is the 1-based execution attempt; retries increment it.
	Attempt int
}

// Context is handed to Task.Run. It is cancelled when the task is aborted or
// the manager shuts down.
type Context struct {
	context.Context
	RunInfo
	Logger *slog.Logger

	sink EventSink
}

// NewContext builds the run context for t. The returned cancel func must be
// called once Run returns.
func NewContext(parent context.Context, t Task, info RunInfo, logger *slog.Logger, sink EventSink) (*Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx := logging.WithTaskID(parent, info.TaskID)
	ctx = logging.WithLane(ctx, info.Lane)
	ctx = logging.WithRunID(ctx, info.RunID)
	ctx, cancel := context.WithCancel(ctx)

	binder, _ := t.(cancelBinder)
	if binder != nil {
		binder.bindCancel(cancel)
	}
	rc := &Context{
		Context: ctx,
		RunInfo: info,
		Logger:  logging.WithContext(ctx, logger),
		sink:    sink,
	}
	return rc, func() {
		if binder != nil {
			binder.bindCancel(nil)
		}
		cancel()
	}
}

// RecordEvent stores an informational event tied to the running task. A
// non-nil detail is JSON-encoded into the event payload.
func (c *Context) RecordEvent(description string, detail any) error {
	if c.sink == nil {
		return errors.New("record event: no event sink")
	}
	var payload []byte
	if detail != nil {
		data, err := json.Marshal(detail)
		if err != nil {
			return fmt.Errorf("record event: encode detail: %w", err)
		}
		payload = data
	}
	return c.sink(c.Context, description, payload)
}
