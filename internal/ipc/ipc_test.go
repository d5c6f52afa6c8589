package ipc_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"taskq/internal/api"
	"taskq/internal/daemon"
	"taskq/internal/ipc"
	"taskq/internal/jobs"
	"taskq/internal/logging"
	"taskq/internal/queue"
	"taskq/internal/testsupport"
	"taskq/internal/workflow"
)

func TestIPCServerClient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	store := testsupport.MustOpenStore(t, cfg)
	reg, err := jobs.NewRegistry(jobs.DepsFromConfig(cfg))
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	logger := logging.NewNop()
	mgr := workflow.NewManager(store, reg, logger, workflow.ConfigOptions(cfg)...)
	d, err := daemon.New(cfg, store, logger, mgr, reg)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := filepath.Join(testsupport.BaseDir(cfg), "taskq.sock")
	srv, err := ipc.NewServer(ctx, socket, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() {
		client.Close()
	})

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be stopped before Start")
	}

	// Tasks enqueued while the daemon is stopped stay queued.
	enq, err := client.Enqueue(ipc.EnqueueRequest{
		Kind:     jobs.KindEcho,
		Category: 5,
		Params:   json.RawMessage(`{"message":"over the socket"}`),
	})
	if err != nil {
		t.Fatalf("Enqueue RPC failed: %v", err)
	}
	if enq.Task.Status != string(queue.StatusQueued) || enq.Task.Lane != "main" {
		t.Fatalf("unexpected enqueued task: %+v", enq.Task)
	}
	if _, err := client.Enqueue(ipc.EnqueueRequest{Kind: "nope"}); err == nil || !strings.Contains(err.Error(), "invalid request") {
		t.Fatalf("expected invalid request error, got %v", err)
	}

	active, err := client.Active(5)
	if err != nil || !active.Active {
		t.Fatalf("Active(5) = %+v, %v", active, err)
	}

	list, err := client.List(ipc.ListRequest{Statuses: []string{"queued"}})
	if err != nil {
		t.Fatalf("List RPC failed: %v", err)
	}
	if len(list.Tasks) != 1 || list.Tasks[0].ID != enq.Task.ID {
		t.Fatalf("unexpected list: %+v", list.Tasks)
	}

	desc, err := client.Describe(enq.Task.ID)
	if err != nil {
		t.Fatalf("Describe RPC failed: %v", err)
	}
	if desc.Task.Description != "Echo over the socket" {
		t.Fatalf("unexpected description %q", desc.Task.Description)
	}
	if _, err := client.Describe(enq.Task.ID + 10); err == nil {
		t.Fatal("expected describe of missing task to fail")
	}

	taskID := enq.Task.ID
	ev, err := mgr.StoreEvent(ctx, &taskID, queue.NewEvent{Description: "note"})
	if err != nil || ev == nil {
		t.Fatalf("StoreEvent: %v", err)
	}
	events, err := client.Events(&taskID)
	if err != nil {
		t.Fatalf("Events RPC failed: %v", err)
	}
	if len(events.Events) != 1 || events.Events[0].ID != ev.ID {
		t.Fatalf("unexpected events: %+v", events.Events)
	}
	if resp, err := client.DeleteEvent(ev.ID); err != nil || !resp.Deleted {
		t.Fatalf("DeleteEvent = %+v, %v", resp, err)
	}

	health, err := client.QueueHealth()
	if err != nil {
		t.Fatalf("QueueHealth RPC failed: %v", err)
	}
	if health.Total != 1 || health.Pending != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
	dbHealth, err := client.DatabaseHealth()
	if err != nil {
		t.Fatalf("DatabaseHealth RPC failed: %v", err)
	}
	if !strings.HasSuffix(dbHealth.DBPath, "queue.db") || !dbHealth.IntegrityCheck {
		t.Fatalf("unexpected db health: %+v", dbHealth)
	}

	retry, err := client.Retry([]int64{enq.Task.ID})
	if err != nil {
		t.Fatalf("Retry RPC failed: %v", err)
	}
	if retry.RetriedCount != 0 || retry.Items[0].Outcome != api.RetryTaskNotFailed {
		t.Fatalf("unexpected retry result: %+v", retry)
	}

	del, err := client.Delete([]int64{enq.Task.ID, enq.Task.ID + 10})
	if err != nil {
		t.Fatalf("Delete RPC failed: %v", err)
	}
	if del.DeletedCount != 1 || del.Items[1].Outcome != api.DeleteTaskNotFound {
		t.Fatalf("unexpected delete result: %+v", del)
	}

	if _, err := client.Cleanup(); err != nil {
		t.Fatalf("Cleanup RPC failed: %v", err)
	}

	startResp, err := client.Start()
	if err != nil {
		t.Fatalf("Start RPC failed: %v", err)
	}
	if !startResp.Started {
		t.Fatalf("expected Started=true, message=%s", startResp.Message)
	}
	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if !status.Running || !status.Manager.Running {
		t.Fatalf("expected daemon to be running: %+v", status)
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected stop response to be true")
	}
	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.Running {
		t.Fatal("expected daemon to be stopped")
	}
}
