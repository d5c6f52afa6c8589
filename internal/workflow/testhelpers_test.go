package workflow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"taskq/internal/config"
	"taskq/internal/queue"
	"taskq/internal/task"
	"taskq/internal/testsupport"
	"taskq/internal/workflow"
)

// script records runs of scriptedTask and decides their outcome by name.
type script struct {
	mu       sync.Mutex
	runs     map[string]int
	order    []string
	behavior map[string]func(rc *task.Context) (bool, error)
}

func newScript() *script {
	return &script{
		runs:     make(map[string]int),
		behavior: make(map[string]func(rc *task.Context) (bool, error)),
	}
}

func (p *script) on(name string, fn func(rc *task.Context) (bool, error)) {
	p.mu.Lock()
	p.behavior[name] = fn
	p.mu.Unlock()
}

func (p *script) record(name string) func(rc *task.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.runs[name]++
	p.order = append(p.order, name)
	return p.behavior[name]
}

func (p *script) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.runs[name]
}

func (p *script) sequence() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.order...)
}

type scriptedTask struct {
	task.Base
	Name string `json:"name"`

	script *script
}

func (p *scriptedTask) Kind() string        { return "scripted" }
func (p *scriptedTask) Description() string { return "scripted " + p.Name }

func (p *scriptedTask) Run(rc *task.Context) (bool, error) {
	fn := p.script.record(p.Name)
	if fn == nil {
		return true, nil
	}
	return fn(rc)
}

type harness struct {
	cfg   *config.Config
	store *queue.Store
	mgr   *workflow.Manager
	script *script
	clock *testsupport.Clock
}

func newHarness(t *testing.T, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	return buildHarness(t, nil, opts...)
}

// newClockedHarness drives store timestamps from a manual clock. Only use it
// with a zero backoff: lanes wait on real timers.
func newClockedHarness(t *testing.T, clock *testsupport.Clock, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	return buildHarness(t, clock, opts...)
}

func buildHarness(t *testing.T, clock *testsupport.Clock, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	var storeOpts []queue.Option
	if clock != nil {
		storeOpts = append(storeOpts, queue.WithNowFunc(clock.Now))
	}
	store := testsupport.MustOpenStore(t, cfg, storeOpts...)

	p := newScript()
	reg := task.NewRegistry()
	reg.MustRegister("scripted", 1, func() task.Task { return &scriptedTask{script: p} })

	base := []workflow.ManagerOption{
		workflow.WithLanes(cfg.Queue.Lanes...),
		workflow.WithBackoff(workflow.FixedBackoff(0)),
		workflow.WithErrorRetryDelay(10 * time.Millisecond),
	}
	mgr := workflow.NewManager(store, reg, nil, append(base, opts...)...)
	t.Cleanup(mgr.Stop)
	return &harness{cfg: cfg, store: store, mgr: mgr, script: p, clock: clock}
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
}

func (h *harness) enqueue(t *testing.T, name, lane string, configure func(*scriptedTask)) *queue.TaskRecord {
	t.Helper()
	pt := &scriptedTask{Name: name, script: h.script}
	if configure != nil {
		configure(pt)
	}
	rec, err := h.mgr.Enqueue(context.Background(), pt, lane)
	if err != nil {
		t.Fatalf("Enqueue(%s) failed: %v", name, err)
	}
	return rec
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.mgr.WaitIdle(ctx); err != nil {
		t.Fatalf("WaitIdle failed: %v", err)
	}
}

func (h *harness) task(t *testing.T, id int64) *queue.TaskRecord {
	t.Helper()
	rec, err := h.store.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	return rec
}

func (h *harness) events(t *testing.T, id int64) []queue.EventRecord {
	t.Helper()
	events, err := h.store.EventsForTask(context.Background(), id)
	if err != nil {
		t.Fatalf("EventsForTask failed: %v", err)
	}
	return events
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(10 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}
