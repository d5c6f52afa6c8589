package api

import (
	"context"
	"errors"

	"taskq/internal/queue"
)

type DeleteTaskOutcome string

const (
	DeleteTaskDeleted  DeleteTaskOutcome = "deleted"
	DeleteTaskDeferred DeleteTaskOutcome = "deferred"
	DeleteTaskNotFound DeleteTaskOutcome = "not_found"
)

type DeleteTaskResult struct {
	ID            int64             `json:"id"`
	Outcome       DeleteTaskOutcome `json:"outcome"`
	EventsRemoved int64             `json:"eventsRemoved,omitempty"`
}

type DeleteTasksResult struct {
	DeletedCount int64              `json:"deletedCount"`
	Items        []DeleteTaskResult `json:"items"`
}

type RetryTaskOutcome string

const (
	RetryTaskRetried   RetryTaskOutcome = "retried"
	RetryTaskNotFound  RetryTaskOutcome = "not_found"
	RetryTaskNotFailed RetryTaskOutcome = "not_failed"
)

type RetryTaskResult struct {
	ID          int64            `json:"id"`
	Outcome     RetryTaskOutcome `json:"outcome"`
	PriorStatus string           `json:"priorStatus,omitempty"`
}

type RetryTasksResult struct {
	RetriedCount int64             `json:"retriedCount"`
	Items        []RetryTaskResult `json:"items"`
}

// DeleteTasks deletes tasks one by one so each id reports its own outcome.
// Running tasks are aborted and reported as deferred.
func (s *Service) DeleteTasks(ctx context.Context, ids []int64) (DeleteTasksResult, error) {
	result := DeleteTasksResult{Items: make([]DeleteTaskResult, 0, len(ids))}
	for _, id := range ids {
		res, err := s.queue.DeleteTask(ctx, id)
		if errors.Is(err, queue.ErrTaskNotFound) {
			result.Items = append(result.Items, DeleteTaskResult{ID: id, Outcome: DeleteTaskNotFound})
			continue
		}
		if err != nil {
			return DeleteTasksResult{}, err
		}
		result.DeletedCount++
		outcome := DeleteTaskDeleted
		if res.Deferred {
			outcome = DeleteTaskDeferred
		}
		result.Items = append(result.Items, DeleteTaskResult{ID: id, Outcome: outcome, EventsRemoved: res.EventsRemoved})
	}
	return result, nil
}

// RetryTasks requeues failed tasks and reports why others were skipped.
func (s *Service) RetryTasks(ctx context.Context, ids []int64) (RetryTasksResult, error) {
	result := RetryTasksResult{Items: make([]RetryTaskResult, 0, len(ids))}
	for _, id := range ids {
		rec, err := s.queue.Task(ctx, id)
		if err != nil {
			return RetryTasksResult{}, err
		}
		if rec == nil {
			result.Items = append(result.Items, RetryTaskResult{ID: id, Outcome: RetryTaskNotFound})
			continue
		}
		if rec.Status != queue.StatusFailed {
			result.Items = append(result.Items, RetryTaskResult{ID: id, Outcome: RetryTaskNotFailed, PriorStatus: string(rec.Status)})
			continue
		}
		if _, err := s.queue.RetryTask(ctx, id); err != nil {
			if errors.Is(err, queue.ErrInvalidTransition) || errors.Is(err, queue.ErrTaskNotFound) {
				result.Items = append(result.Items, RetryTaskResult{ID: id, Outcome: RetryTaskNotFailed, PriorStatus: string(rec.Status)})
				continue
			}
			return RetryTasksResult{}, err
		}
		result.RetriedCount++
		result.Items = append(result.Items, RetryTaskResult{ID: id, Outcome: RetryTaskRetried, PriorStatus: string(rec.Status)})
	}
	return result, nil
}
