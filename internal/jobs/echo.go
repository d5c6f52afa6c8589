package jobs

import (
	"taskq/internal/logging"
	"taskq/internal/task"
)

// Echo logs Message. While the attempt number is at most FailAttempts it asks
// to be retried instead.
type Echo struct {
	task.Base

	Message      string `json:"message" validate:"required,max=1000"`
	FailAttempts int    `json:"fail_attempts,omitempty" validate:"gte=0,lte=100"`
	RecordEvent  bool   `json:"record_event,omitempty"`
}

func (e *Echo) Kind() string { return KindEcho }

func (e *Echo) Description() string { return "Echo " + e.Message }

func (e *Echo) Run(rc *task.Context) (bool, error) {
	if rc.Attempt <= e.FailAttempts {
		rc.Logger.Info("echo deferring", logging.Int("attempt", rc.Attempt), logging.Int("fail_attempts", e.FailAttempts))
		return false, nil
	}
	rc.Logger.Info("echo", logging.String("message", e.Message))
	if e.RecordEvent {
		if err := rc.RecordEvent(e.Message, map[string]int{"attempt": rc.Attempt}); err != nil {
			return false, err
		}
	}
	return true, nil
}
