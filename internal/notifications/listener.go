package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"taskq/internal/logging"
	"taskq/internal/queue"
	"taskq/internal/workflow"
)

const publishTimeout = 15 * time.Second

// ListenerOptions selects which outcomes are published.
type ListenerOptions struct {
	Completions bool
	Failures    bool
}

// Listener returns a task listener that publishes final task outcomes through
// svc. Publish errors are logged and otherwise ignored.
func Listener(ctx context.Context, svc Service, logger *slog.Logger, opts ListenerOptions) workflow.TaskListener {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	return func(change workflow.TaskChange) {
		if change.Action != workflow.TaskCompleted || change.Task == nil {
			return
		}
		rec := change.Task
		var event Event
		switch {
		case rec.Status == queue.StatusFailed && opts.Failures:
			event = EventTaskFailed
		case rec.Status == queue.StatusComplete && opts.Completions:
			event = EventTaskCompleted
		default:
			return
		}
		if ctx.Err() != nil {
			return
		}
		pctx, cancel := context.WithTimeout(ctx, publishTimeout)
		defer cancel()
		if err := svc.Publish(pctx, event, payloadFor(rec)); err != nil {
			attrs := append(logging.TaskFields(rec.ID, rec.Kind, rec.QueueName),
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
				logging.String(logging.FieldImpact, "task outcome was not published"),
			)
			logging.WarnWithContext(logger, "notification failed", "notification_failed", attrs...)
		}
	}
}

func payloadFor(rec *queue.TaskRecord) Payload {
	return Payload{
		"id":          strconv.FormatInt(rec.ID, 10),
		"kind":        rec.Kind,
		"description": rec.Description,
		"lane":        rec.QueueName,
		"reason":      rec.FailureReason,
	}
}
