package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"taskq/internal/api"
	"taskq/internal/config"
	"taskq/internal/logging"
	"taskq/internal/queue"
	"taskq/internal/task"
	"taskq/internal/workflow"
)

// Daemon coordinates background task processing and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	manager  *workflow.Manager
	registry *task.Registry
	service  *api.Service
	apiSrv   *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, logger *slog.Logger, mgr *workflow.Manager, reg *task.Registry) (*Daemon, error) {
	if cfg == nil || store == nil || mgr == nil || reg == nil {
		return nil, errors.New("daemon requires config, store, manager, and task registry")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  mgr,
		registry: reg,
		service:  api.NewService(mgr, reg, api.WithDefaultRetryLimit(cfg.Queue.RetryLimit)),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.apiSrv = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, starts the lane manager, the HTTP API, and
// the retention loop.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another taskq daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.manager.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start queue manager: %w", err)
	}
	if err := d.apiSrv.start(runCtx); err != nil {
		cancel()
		d.manager.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.runMaintenance(runCtx)
	}()

	d.running.Store(true)
	d.logger.Info("taskq daemon started",
		logging.String("lock", d.lockPath),
		logging.String(logging.FieldEventType, "daemon_start"),
	)
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.wg.Wait()
	d.apiSrv.stop()
	d.manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "next daemon start may report a running instance"),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("taskq daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	return d.store.Close()
}

// Running reports whether Start succeeded without a matching Stop.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Service returns the administrative queue service.
func (d *Daemon) Service() *api.Service {
	return d.service
}

// Manager returns the lane manager.
func (d *Daemon) Manager() *workflow.Manager {
	return d.manager
}

// APIAddress returns the address the HTTP API is listening on, or "" when
// the API is disabled or not started.
func (d *Daemon) APIAddress() string {
	return d.apiSrv.address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) api.DaemonStatus {
	return api.DaemonStatus{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		APIBind:      strings.TrimSpace(d.cfg.Paths.APIBind),
		Kinds:        d.registry.Kinds(),
		Manager:      d.service.Status(ctx),
	}
}

// QueueHealth returns aggregate queue counts.
func (d *Daemon) QueueHealth(ctx context.Context) (queue.HealthSummary, error) {
	return d.store.Health(ctx)
}

// DatabaseHealth returns detailed database diagnostics.
func (d *Daemon) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return d.store.CheckHealth(ctx)
}
