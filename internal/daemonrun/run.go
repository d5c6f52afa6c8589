package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"taskq/internal/config"
	"taskq/internal/daemon"
	"taskq/internal/ipc"
	"taskq/internal/jobs"
	"taskq/internal/logging"
	"taskq/internal/notifications"
	"taskq/internal/preflight"
	"taskq/internal/queue"
	"taskq/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	SocketPath  string
}

// PIDPath returns the pid file written by Run.
func PIDPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.DataDir, "taskq.pid")
}

// Run starts the taskq daemon and blocks until SIGINT, SIGTERM, or cmdCtx
// cancellation.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}
	if failed := preflight.Failed(preflight.RunAll(signalCtx, cfg)); len(failed) > 0 {
		details := make([]string, 0, len(failed))
		for _, r := range failed {
			details = append(details, r.Name+": "+r.Detail)
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(details, "; "))
	}

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout"},
		FilePath:    cfg.DaemonLogPath(),
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logger = logger.With(logging.String("session_id", uuid.NewString()))
	logConfigSnapshot(logger, cfg)

	pidPath := PIDPath(cfg)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	registry, err := jobs.NewRegistry(jobs.DepsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("register task kinds: %w", err)
	}
	manager := workflow.NewManager(store, registry, logger, workflow.ConfigOptions(cfg)...)
	notifySub := manager.RegisterTaskListener(notifications.Listener(signalCtx, notifications.NewService(cfg), logger, notifications.ListenerOptions{
		Failures:    cfg.Notifications.TaskFailed,
		Completions: cfg.Notifications.TaskCompleted,
	}))
	defer notifySub.Close()

	d, err := daemon.New(cfg, store, logger, manager, registry)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Stop()

	socketPath := strings.TrimSpace(opts.SocketPath)
	if socketPath == "" {
		socketPath = cfg.SocketPath()
	}
	ipcServer, err := ipc.NewServer(signalCtx, socketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if err := d.Start(signalCtx); err != nil {
		logging.WarnWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
			logging.String(logging.FieldImpact, "daemon will not run tasks until started over IPC"),
		)
	}

	<-signalCtx.Done()
	logger.Info("taskq daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("data_dir", cfg.Paths.DataDir),
		logging.String("queue_db", cfg.QueueDBPath()),
		logging.String("lanes", strings.Join(cfg.Queue.Lanes, ",")),
		logging.String("default_lane", cfg.Queue.DefaultLane),
		logging.Int("retry_limit", cfg.Queue.RetryLimit),
		logging.Duration("retention", cfg.RetentionPeriod()),
		logging.Bool("api_enabled", strings.TrimSpace(cfg.Paths.APIBind) != ""),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
	)
}
