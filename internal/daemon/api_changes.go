package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"taskq/internal/api"
	"taskq/internal/logging"
	"taskq/internal/workflow"
)

const (
	changeBuffer      = 256
	heartbeatInterval = 15 * time.Second
)

// handleChanges streams task and event notifications as server-sent events
// until the client disconnects or the server stops. Changes arriving while
// the client's buffer is full are dropped and counted.
func (s *apiServer) handleChanges(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	changes := make(chan api.Change, changeBuffer)
	var dropped atomic.Int64
	push := func(change api.Change) {
		select {
		case changes <- change:
		default:
			dropped.Add(1)
		}
	}
	mgr := s.daemon.Manager()
	taskSub := mgr.RegisterTaskListener(func(change workflow.TaskChange) { push(api.FromTaskChange(change)) })
	defer taskSub.Close()
	eventSub := mgr.RegisterEventListener(func(change workflow.EventChange) { push(api.FromEventChange(change)) })
	defer eventSub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	done := s.shutdownSignal()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case change := <-changes:
			data, err := json.Marshal(change)
			if err != nil {
				s.logger.Error("failed to encode change", logging.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", change.Type, data); err != nil {
				return
			}
		}
		if n := dropped.Swap(0); n > 0 {
			logging.WarnWithContext(s.logger, "change stream client fell behind", "change_stream_dropped",
				logging.Int64("dropped", n),
				logging.String(logging.FieldImpact, "client missed notifications and should re-list tasks"),
			)
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
