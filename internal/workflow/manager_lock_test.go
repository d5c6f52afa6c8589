package workflow

import (
	"context"
	"testing"
	"time"

	"taskq/internal/task"
	"taskq/internal/testsupport"
)

func TestCleanupWaitsForManagerLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	m := NewManager(store, task.NewRegistry(), nil)

	m.mu.Lock()
	done := make(chan struct{})
	go func() {
		_, _ = m.Cleanup(context.Background())
		close(done)
	}()

	select {
	case <-done:
		m.mu.Unlock()
		t.Fatal("cleanup deleted rows without holding the manager lock")
	case <-time.After(100 * time.Millisecond):
	}
	m.mu.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cleanup did not finish after the lock was released")
	}
}
