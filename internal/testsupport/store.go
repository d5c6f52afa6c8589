package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskq/internal/config"
	"taskq/internal/queue"
)

// MustOpenStore opens a queue.Store for tests, creates the configured lanes,
// and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, opts...)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	for _, lane := range cfg.Queue.Lanes {
		if _, err := store.CreateQueue(context.Background(), lane); err != nil {
			t.Fatalf("CreateQueue(%q): %v", lane, err)
		}
	}
	return store
}

// EnqueueRaw inserts a task row with a placeholder payload.
func EnqueueRaw(t testing.TB, store *queue.Store, lane string, task queue.NewTask) *queue.TaskRecord {
	t.Helper()

	if task.Kind == "" {
		task.Kind = "raw"
	}
	if len(task.Payload) == 0 {
		task.Payload = []byte(`{"kind":"raw","version":1,"data":{}}`)
	}
	rec, err := store.Enqueue(context.Background(), lane, task)
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return rec
}

// Clock is a settable time source for deterministic store timestamps.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start.UTC()}
}

// Now returns the clock's current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
