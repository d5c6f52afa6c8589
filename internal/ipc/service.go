package ipc

import (
	"context"
	"log/slog"

	"taskq/internal/daemon"
	"taskq/internal/logging"
)

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC", logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = s.daemon.Status(s.ctx)
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	task, err := s.daemon.Service().Enqueue(s.ctx, req)
	if err != nil {
		return err
	}
	resp.Task = *task
	attrs := append(logging.TaskFields(task.ID, task.Kind, task.Lane), logging.String(logging.FieldEventType, "task_enqueued"))
	s.logger.Info("task enqueued via IPC", logging.Args(attrs...)...)
	return nil
}

func (s *service) List(req ListRequest, resp *ListResponse) error {
	tasks, err := s.daemon.Service().List(s.ctx, req)
	if err != nil {
		return err
	}
	resp.Tasks = tasks
	return nil
}

func (s *service) Describe(req DescribeRequest, resp *DescribeResponse) error {
	task, err := s.daemon.Service().Describe(s.ctx, req.ID)
	if err != nil {
		return err
	}
	resp.Task = *task
	return nil
}

func (s *service) Delete(req DeleteRequest, resp *DeleteResponse) error {
	s.logger.Debug("task delete requested", logging.Int("item_count", len(req.IDs)))
	result, err := s.daemon.Service().DeleteTasks(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	*resp = result
	s.logger.Info("tasks deleted via IPC",
		logging.String(logging.FieldEventType, "task_delete"),
		logging.Int64("deleted_count", result.DeletedCount))
	return nil
}

func (s *service) Retry(req RetryRequest, resp *RetryResponse) error {
	s.logger.Debug("task retry requested", logging.Int("item_count", len(req.IDs)))
	result, err := s.daemon.Service().RetryTasks(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	*resp = result
	s.logger.Info("tasks retried via IPC",
		logging.String(logging.FieldEventType, "task_retry"),
		logging.Int64("retried_count", result.RetriedCount))
	return nil
}

func (s *service) Events(req EventsRequest, resp *EventsResponse) error {
	events, err := s.daemon.Service().Events(s.ctx, req.TaskID)
	if err != nil {
		return err
	}
	resp.Events = events
	return nil
}

func (s *service) DeleteEvent(req DeleteEventRequest, resp *DeleteEventResponse) error {
	if err := s.daemon.Service().DeleteEvent(s.ctx, req.ID); err != nil {
		return err
	}
	resp.Deleted = true
	return nil
}

func (s *service) Cleanup(_ CleanupRequest, resp *CleanupResponse) error {
	result, err := s.daemon.Service().Cleanup(s.ctx)
	if err != nil {
		return err
	}
	*resp = result
	s.logger.Info("retention pass run via IPC",
		logging.String(logging.FieldEventType, "retention_pass"),
		logging.Int64("tasks_removed", result.TasksRemoved),
		logging.Int64("events_removed", result.EventsRemoved))
	return nil
}

func (s *service) Active(req ActiveRequest, resp *ActiveResponse) error {
	active, err := s.daemon.Service().HasActiveTasks(s.ctx, req.Category)
	if err != nil {
		return err
	}
	resp.Active = active
	return nil
}

func (s *service) QueueHealth(_ QueueHealthRequest, resp *QueueHealthResponse) error {
	health, err := s.daemon.QueueHealth(s.ctx)
	if err != nil {
		return err
	}
	*resp = QueueHealthResponse{
		Total:    health.Total,
		Pending:  health.Pending,
		Running:  health.Running,
		Failed:   health.Failed,
		Complete: health.Complete,
		Events:   health.Events,
	}
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	*resp = DatabaseHealthResponse{
		DBPath:           health.DBPath,
		DatabaseExists:   health.DatabaseExists,
		DatabaseReadable: health.DatabaseReadable,
		SchemaVersion:    health.SchemaVersion,
		MissingTables:    append([]string(nil), health.MissingTables...),
		IntegrityCheck:   health.IntegrityCheck,
		TotalTasks:       health.TotalTasks,
		TotalEvents:      health.TotalEvents,
		Error:            health.Error,
	}
	return err
}
