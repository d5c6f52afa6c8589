package queueaccess

import (
	"context"
	"fmt"
	"strings"

	"taskq/internal/api"
	"taskq/internal/config"
	"taskq/internal/ipc"
	"taskq/internal/jobs"
	"taskq/internal/queue"
	"taskq/internal/workflow"
)

// Access provides task and event operations whether the daemon serves them
// over IPC or the caller opens the database itself.
type Access interface {
	Enqueue(ctx context.Context, req api.EnqueueRequest) (*api.Task, error)
	List(ctx context.Context, q api.TaskQuery) ([]api.Task, error)
	Describe(ctx context.Context, id int64) (*api.Task, error)
	Delete(ctx context.Context, ids []int64) (api.DeleteTasksResult, error)
	Retry(ctx context.Context, ids []int64) (api.RetryTasksResult, error)
	Events(ctx context.Context, taskID *int64) ([]api.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
	Cleanup(ctx context.Context) (api.CleanupResult, error)
	Active(ctx context.Context, category int64) (bool, error)
	Health(ctx context.Context) (queue.HealthSummary, error)
	DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Enqueue(_ context.Context, req api.EnqueueRequest) (*api.Task, error) {
	resp, err := a.client.Enqueue(req)
	if err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

func (a *ipcAccess) List(_ context.Context, q api.TaskQuery) ([]api.Task, error) {
	resp, err := a.client.List(q)
	if err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (a *ipcAccess) Describe(_ context.Context, id int64) (*api.Task, error) {
	resp, err := a.client.Describe(id)
	if err != nil {
		if isRemoteNotFound(err) {
			return nil, fmt.Errorf("%w: task %d", api.ErrNotFound, id)
		}
		return nil, err
	}
	return &resp.Task, nil
}

func (a *ipcAccess) Delete(_ context.Context, ids []int64) (api.DeleteTasksResult, error) {
	resp, err := a.client.Delete(ids)
	if err != nil {
		return api.DeleteTasksResult{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) Retry(_ context.Context, ids []int64) (api.RetryTasksResult, error) {
	resp, err := a.client.Retry(ids)
	if err != nil {
		return api.RetryTasksResult{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) Events(_ context.Context, taskID *int64) ([]api.Event, error) {
	resp, err := a.client.Events(taskID)
	if err != nil {
		return nil, err
	}
	return resp.Events, nil
}

func (a *ipcAccess) DeleteEvent(_ context.Context, id int64) error {
	if _, err := a.client.DeleteEvent(id); err != nil {
		if isRemoteNotFound(err) {
			return fmt.Errorf("%w: event %d", api.ErrNotFound, id)
		}
		return err
	}
	return nil
}

func (a *ipcAccess) Cleanup(_ context.Context) (api.CleanupResult, error) {
	resp, err := a.client.Cleanup()
	if err != nil {
		return api.CleanupResult{}, err
	}
	return *resp, nil
}

func (a *ipcAccess) Active(_ context.Context, category int64) (bool, error) {
	resp, err := a.client.Active(category)
	if err != nil {
		return false, err
	}
	return resp.Active, nil
}

func (a *ipcAccess) Health(_ context.Context) (queue.HealthSummary, error) {
	resp, err := a.client.QueueHealth()
	if err != nil {
		return queue.HealthSummary{}, err
	}
	return queue.HealthSummary(*resp), nil
}

func (a *ipcAccess) DatabaseHealth(_ context.Context) (queue.DatabaseHealth, error) {
	resp, err := a.client.DatabaseHealth()
	if err != nil {
		return queue.DatabaseHealth{}, err
	}
	return queue.DatabaseHealth(*resp), nil
}

// RPC errors arrive as plain strings.
func isRemoteNotFound(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "not found")
}

// localAccess drives an unstarted manager: tasks enqueued here stay queued
// until a daemon picks them up.
type localAccess struct {
	store   *queue.Store
	service *api.Service
}

// OpenLocal opens the configured database and serves Access from it.
func OpenLocal(cfg *config.Config) (*Session, error) {
	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open queue database: %w", err)
	}
	for _, lane := range cfg.Queue.Lanes {
		if _, err := store.CreateQueue(context.Background(), lane); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("create lane %q: %w", lane, err)
		}
	}
	registry, err := jobs.NewRegistry(jobs.DepsFromConfig(cfg))
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	mgr := workflow.NewManager(store, registry, nil, workflow.ConfigOptions(cfg)...)
	service := api.NewService(mgr, registry, api.WithDefaultRetryLimit(cfg.Queue.RetryLimit))
	return &Session{
		Access: &localAccess{store: store, service: service},
		Local:  true,
		close:  store.Close,
	}, nil
}

func (a *localAccess) Enqueue(ctx context.Context, req api.EnqueueRequest) (*api.Task, error) {
	return a.service.Enqueue(ctx, req)
}

func (a *localAccess) List(ctx context.Context, q api.TaskQuery) ([]api.Task, error) {
	return a.service.List(ctx, q)
}

func (a *localAccess) Describe(ctx context.Context, id int64) (*api.Task, error) {
	return a.service.Describe(ctx, id)
}

func (a *localAccess) Delete(ctx context.Context, ids []int64) (api.DeleteTasksResult, error) {
	return a.service.DeleteTasks(ctx, ids)
}

func (a *localAccess) Retry(ctx context.Context, ids []int64) (api.RetryTasksResult, error) {
	return a.service.RetryTasks(ctx, ids)
}

func (a *localAccess) Events(ctx context.Context, taskID *int64) ([]api.Event, error) {
	return a.service.Events(ctx, taskID)
}

func (a *localAccess) DeleteEvent(ctx context.Context, id int64) error {
	return a.service.DeleteEvent(ctx, id)
}

func (a *localAccess) Cleanup(ctx context.Context) (api.CleanupResult, error) {
	return a.service.Cleanup(ctx)
}

func (a *localAccess) Active(ctx context.Context, category int64) (bool, error) {
	return a.service.HasActiveTasks(ctx, category)
}

func (a *localAccess) Health(ctx context.Context) (queue.HealthSummary, error) {
	return a.store.Health(ctx)
}

func (a *localAccess) DatabaseHealth(ctx context.Context) (queue.DatabaseHealth, error) {
	return a.store.CheckHealth(ctx)
}
