package daemon_test

import (
	"context"
	"encoding/json"
	"testing"

	"taskq/internal/api"
	"taskq/internal/daemon"
	"taskq/internal/jobs"
)

func enqueueEcho(t *testing.T, d *daemon.Daemon, message string) *api.Task {
	t.Helper()
	params, _ := json.Marshal(map[string]string{"message": message})
	task, err := d.Service().Enqueue(context.Background(), api.EnqueueRequest{Kind: jobs.KindEcho, Params: params})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return task
}
