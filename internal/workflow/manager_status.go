package workflow

import (
	"context"
	"sort"
	"time"

	"taskq/internal/logging"
	"taskq/internal/queue"
)

// LaneStatus describes one live lane worker.
type LaneStatus struct {
	Name   string
	Active *queue.TaskRecord
	RunID  string
	Since  time.Time
}

// StatusSummary represents lightweight manager diagnostics.
type StatusSummary struct {
	Running    bool
	Lanes      []LaneStatus
	LastError  string
	QueueStats map[queue.Status]int
}

// Status returns the latest manager information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.Lock()
	summary := StatusSummary{Running: m.running}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	for name, w := range m.workers {
		lane := LaneStatus{Name: name}
		if w.active != nil {
			snapshot := *w.active.record
			lane.Active = &snapshot
			lane.RunID = w.active.runID
			lane.Since = w.active.started
		}
		summary.Lanes = append(summary.Lanes, lane)
	}
	m.mu.Unlock()

	sort.Slice(summary.Lanes, func(i, j int) bool { return summary.Lanes[i].Name < summary.Lanes[j].Name })

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats",
			logging.Error(err),
			logging.String(logging.FieldEventType, "queue_stats_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
	summary.QueueStats = stats
	return summary
}
