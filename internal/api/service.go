package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"taskq/internal/queue"
	"taskq/internal/task"
	"taskq/internal/workflow"
)

// TaskQueue abstracts the manager operations the service needs.
type TaskQueue interface {
	Enqueue(ctx context.Context, t task.Task, lane string) (*queue.TaskRecord, error)
	Task(ctx context.Context, id int64) (*queue.TaskRecord, error)
	Tasks(ctx context.Context, filter queue.TaskFilter) ([]queue.TaskSummary, error)
	Events(ctx context.Context, taskID *int64) ([]queue.EventRecord, error)
	DeleteTask(ctx context.Context, id int64) (workflow.DeleteResult, error)
	DeleteEvent(ctx context.Context, id int64) error
	RetryTask(ctx context.Context, id int64) (*queue.TaskRecord, error)
	Cleanup(ctx context.Context) (queue.CleanupResult, error)
	HasActiveTasks(ctx context.Context, category int64) (bool, error)
	Status(ctx context.Context) workflow.StatusSummary
}

var _ TaskQueue = (*workflow.Manager)(nil)

// settable is satisfied by every task embedding task.Base.
type settable interface {
	SetRetryLimit(int)
	SetPriority(int)
	SetCategory(int64)
}

// Service exposes administrative queue operations returning API DTOs.
type Service struct {
	queue             TaskQueue
	registry          *task.Registry
	validate          *validator.Validate
	defaultRetryLimit int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithDefaultRetryLimit sets the retry limit for tasks whose request and
// params do not name one.
func WithDefaultRetryLimit(n int) ServiceOption {
	return func(s *Service) {
		if n >= 0 {
			s.defaultRetryLimit = n
		}
	}
}

// NewService constructs a Service around q. reg resolves task kinds for Enqueue.
func NewService(q TaskQueue, reg *task.Registry, opts ...ServiceOption) *Service {
	s := &Service{
		queue:             q,
		registry:          reg,
		validate:          validator.New(validator.WithRequiredStructEnabled()),
		defaultRetryLimit: task.DefaultRetryLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Kinds lists the task kinds Enqueue accepts.
func (s *Service) Kinds() []string {
	return s.registry.Kinds()
}

// Enqueue validates req, builds the task from its kind and params, and queues it.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*Task, error) {
	req.Kind = strings.TrimSpace(req.Kind)
	req.Lane = strings.TrimSpace(req.Lane)
	if err := s.validate.Struct(req); err != nil {
		return nil, invalid(err)
	}
	t, err := s.registry.New(req.Kind)
	if err != nil {
		return nil, invalid(err)
	}
	if st, ok := t.(settable); ok {
		st.SetRetryLimit(s.defaultRetryLimit)
	}
	if len(req.Params) > 0 && string(req.Params) != "null" {
		if err := json.Unmarshal(req.Params, t); err != nil {
			return nil, invalid(fmt.Errorf("decode %s params: %w", req.Kind, err))
		}
	}
	if st, ok := t.(settable); ok {
		if req.RetryLimit != nil {
			st.SetRetryLimit(*req.RetryLimit)
		}
		if req.Priority != 0 {
			st.SetPriority(req.Priority)
		}
		if req.Category != 0 {
			st.SetCategory(req.Category)
		}
	}
	if err := s.validate.Struct(t); err != nil {
		return nil, invalid(err)
	}

	rec, err := s.queue.Enqueue(ctx, t, req.Lane)
	if errors.Is(err, queue.ErrUnknownQueue) {
		return nil, invalid(err)
	}
	if err != nil {
		return nil, err
	}
	dto := FromTaskRecord(rec)
	return &dto, nil
}

// Describe fetches a single task.
func (s *Service) Describe(ctx context.Context, id int64) (*Task, error) {
	rec, err := s.queue.Task(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: task %d", ErrNotFound, id)
	}
	dto := FromTaskRecord(rec)
	return &dto, nil
}

// List returns tasks matching q, newest first.
func (s *Service) List(ctx context.Context, q TaskQuery) ([]Task, error) {
	filter := queue.TaskFilter{Category: q.Category, Lane: strings.TrimSpace(q.Lane), Limit: q.Limit}
	for _, raw := range q.Statuses {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidRequest, raw)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	rows, err := s.queue.Tasks(ctx, filter)
	if err != nil {
		return nil, err
	}
	return FromTaskSummaries(rows), nil
}

// Events lists events, optionally for one task.
func (s *Service) Events(ctx context.Context, taskID *int64) ([]Event, error) {
	rows, err := s.queue.Events(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return FromEventRecords(rows), nil
}

// DeleteEvent removes one event.
func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	err := s.queue.DeleteEvent(ctx, id)
	if errors.Is(err, queue.ErrEventNotFound) {
		return fmt.Errorf("%w: event %d", ErrNotFound, id)
	}
	return err
}

// HasActiveTasks reports whether category has unfinished tasks.
func (s *Service) HasActiveTasks(ctx context.Context, category int64) (bool, error) {
	return s.queue.HasActiveTasks(ctx, category)
}

// Cleanup runs the retention passes.
func (s *Service) Cleanup(ctx context.Context) (CleanupResult, error) {
	res, err := s.queue.Cleanup(ctx)
	if err != nil {
		return CleanupResult{}, err
	}
	return CleanupResult{TasksRemoved: res.Tasks, EventsRemoved: res.Events}, nil
}

// Status reports the manager state.
func (s *Service) Status(ctx context.Context) ManagerStatus {
	return FromStatusSummary(s.queue.Status(ctx))
}
