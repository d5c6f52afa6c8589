package workflow

import (
	"log/slog"

	"taskq/internal/logging"
)

func (m *Manager) laneLogger(lane string) *slog.Logger {
	return m.base.With(
		logging.String(logging.FieldComponent, "lane-worker"),
		logging.String(logging.FieldLane, lane),
	)
}

// runLogger is the base for task run loggers; the run context adds the task,
// lane, and run identifiers.
func (m *Manager) runLogger() *slog.Logger {
	return m.base.With(logging.String(logging.FieldComponent, "lane-worker"))
}

func taskAttrs(active *activeTask) []logging.Attr {
	rec := active.record
	return []logging.Attr{
		logging.String(logging.FieldTaskKind, rec.Kind),
		logging.String("description", rec.Description),
		logging.Int("retry_count", rec.RetryCount),
		logging.Int("retry_limit", rec.RetryLimit),
	}
}
