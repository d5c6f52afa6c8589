package daemon_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"taskq/internal/config"
	"taskq/internal/daemon"
	"taskq/internal/jobs"
	"taskq/internal/logging"
	"taskq/internal/testsupport"
	"taskq/internal/workflow"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
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
	t.Cleanup(func() {
		d.Stop()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running || !status.Manager.Running {
		t.Fatalf("expected daemon and manager to report running: %+v", status)
	}
	if !strings.HasSuffix(status.QueueDBPath, "queue.db") {
		t.Fatalf("unexpected db path %q", status.QueueDBPath)
	}
	if len(status.Kinds) != 3 {
		t.Fatalf("kinds = %v", status.Kinds)
	}
	if d.APIAddress() == "" {
		t.Fatal("expected api server address")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running || status.Manager.Running {
		t.Fatal("expected daemon to be stopped")
	}
	if d.APIAddress() != "" {
		t.Fatal("expected api server to be closed")
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)

	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	err := second.Start(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("second Start err = %v", err)
	}

	first.Stop()
	if err := second.Start(context.Background()); err != nil {
		t.Fatalf("second Start after release: %v", err)
	}
}

func TestDaemonRunsEnqueuedTasks(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIBind = ""
	d := newDaemon(t, cfg)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	done := make(chan struct{})
	sub := d.Manager().RegisterTaskListener(func(change workflow.TaskChange) {
		if change.Action == workflow.TaskCompleted {
			close(done)
		}
	})
	defer sub.Close()

	task := enqueueEcho(t, d, "ping")
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for task to complete")
	}
	got, err := d.Service().Describe(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if got.Status != "complete" {
		t.Fatalf("status = %s, want complete", got.Status)
	}
}

func TestDaemonHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d := newDaemon(t, cfg)
	enqueueEcho(t, d, "counted")

	health, err := d.QueueHealth(context.Background())
	if err != nil {
		t.Fatalf("QueueHealth: %v", err)
	}
	if health.Total != 1 || health.Pending != 1 {
		t.Fatalf("unexpected health: %+v", health)
	}
	db, err := d.DatabaseHealth(context.Background())
	if err != nil {
		t.Fatalf("DatabaseHealth: %v", err)
	}
	if !db.DatabaseReadable || !db.IntegrityCheck || db.TotalTasks != 1 {
		t.Fatalf("unexpected database health: %+v", db)
	}
}
