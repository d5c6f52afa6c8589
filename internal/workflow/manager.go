package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taskq/internal/logging"
	"taskq/internal/queue"
	"taskq/internal/task"
)

// Manager coordinates lane workers over a queue store.
type Manager struct {
	store    *queue.Store
	registry *task.Registry
	base     *slog.Logger
	logger   *slog.Logger
	notifier *notifier

	backoff         BackoffPolicy
	lanes           []string
	defaultLane     string
	errorRetryDelay time.Duration
	retention       time.Duration

	mu      sync.Mutex
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers map[string]*laneWorker
	idle    chan struct{}
	lastErr error
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithBackoff sets the retry delay policy.
func WithBackoff(policy BackoffPolicy) ManagerOption {
	return func(m *Manager) {
		if policy != nil {
			m.backoff = policy
		}
	}
}

// WithLanes sets the lanes created at start-up. The first lane becomes the
// default unless WithDefaultLane says otherwise.
func WithLanes(names ...string) ManagerOption {
	return func(m *Manager) {
		if len(names) > 0 {
			m.lanes = append([]string(nil), names...)
		}
	}
}

// WithDefaultLane names the lane used when Enqueue gets an empty lane.
func WithDefaultLane(name string) ManagerOption {
	return func(m *Manager) { m.defaultLane = name }
}

// WithErrorRetryDelay sets how long a lane pauses after a storage failure.
func WithErrorRetryDelay(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.errorRetryDelay = d
		}
	}
}

// WithRetention sets the age after which cleanup removes tasks and events.
func WithRetention(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// NewManager constructs a manager. It does not start any lane until Start.
func NewManager(store *queue.Store, registry *task.Registry, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	m := &Manager{
		store:           store,
		registry:        registry,
		base:            logger,
		logger:          logger.With(logging.String(logging.FieldComponent, "queue-manager")),
		backoff:         DefaultBackoff(),
		lanes:           []string{"main", "small_jobs"},
		errorRetryDelay: 10 * time.Second,
		retention:       7 * 24 * time.Hour,
		workers:         make(map[string]*laneWorker),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.defaultLane == "" && len(m.lanes) > 0 {
		m.defaultLane = m.lanes[0]
	}
	m.notifier = newNotifier(m.logger)
	return m
}

// Start creates the configured lanes, returns tasks left running by a
// previous process to their lanes, and starts a worker for every known lane.
// Workers for empty lanes exit straight away.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyRunning
	}

	for _, name := range m.lanes {
		if _, err := m.store.CreateQueue(ctx, name); err != nil {
			return fmt.Errorf("create lane %q: %w", name, err)
		}
	}
	recovered, err := m.store.RecoverRunning(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		m.logger.Warn("requeued tasks left running by a previous process",
			logging.Int64("count", recovered),
			logging.String(logging.FieldEventType, "tasks_recovered"),
			logging.String(logging.FieldImpact, "interrupted tasks will run again"),
		)
	}
	queues, err := m.store.Queues(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true
	for _, q := range queues {
		m.ensureLaneLocked(q.Name)
	}
	m.logger.Info("queue manager started",
		logging.Int("lanes", len(queues)),
		logging.String(logging.FieldEventType, "manager_started"),
	)
	return nil
}

// Stop cancels every lane and waits for in-flight runs to return. Tasks
// interrupted by the shutdown go back to queued without spending a retry.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("queue manager stopped", logging.String(logging.FieldEventType, "manager_stopped"))
}

// Running reports whether Start has been called without a matching Stop.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// WaitIdle blocks until no lane worker is active. Lanes with waiting tasks
// stay active until those tasks run, so callers should bound ctx.
func (m *Manager) WaitIdle(ctx context.Context) error {
	for {
		m.mu.Lock()
		if !m.running {
			m.mu.Unlock()
			return ErrNotRunning
		}
		idle := m.idle
		m.mu.Unlock()
		if idle == nil {
			return nil
		}
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// DefaultLane returns the lane used when Enqueue is given none.
func (m *Manager) DefaultLane() string {
	return m.defaultLane
}

// ensureLaneLocked wakes the lane's worker, starting one if none is alive.
// The caller must hold m.mu.
func (m *Manager) ensureLaneLocked(name string) {
	if !m.running {
		return
	}
	if w, ok := m.workers[name]; ok {
		w.signal()
		return
	}
	if len(m.workers) == 0 {
		m.idle = make(chan struct{})
	}
	w := newLaneWorker(name, m.laneLogger(name))
	m.workers[name] = w
	m.wg.Add(1)
	go m.runLane(m.runCtx, w)
}

// removeLaneLocked deregisters w. The caller must hold m.mu.
func (m *Manager) removeLaneLocked(w *laneWorker) {
	if current, ok := m.workers[w.name]; !ok || current != w {
		return
	}
	delete(m.workers, w.name)
	if len(m.workers) == 0 && m.idle != nil {
		close(m.idle)
		m.idle = nil
	}
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
