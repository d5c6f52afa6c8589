package queue

import "errors"

var (
	// ErrUnknownQueue is returned when a lane name has no queues row.
	ErrUnknownQueue = errors.New("unknown queue")
	// ErrTaskNotFound is returned when a task id does not exist.
	ErrTaskNotFound = errors.New("task not found")
	// ErrEventNotFound is returned when an event id does not exist.
	ErrEventNotFound = errors.New("event not found")
	// ErrInvalidTransition is returned when a status change is not allowed from the row's current status.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// RetryLimitExceededReason is the failure reason recorded when a task keeps
// asking to be retried after its retry limit is spent.
const RetryLimitExceededReason = "Retry limit exceeded"
