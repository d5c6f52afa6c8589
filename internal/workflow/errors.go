package workflow

import "errors"

var (
	// ErrNotRunning is returned by operations that need a started manager.
	ErrNotRunning = errors.New("queue manager not running")
	// ErrAlreadyRunning is returned when Start is called twice.
	ErrAlreadyRunning = errors.New("queue manager already running")
	// ErrTaskRunning is returned by UpdateTask while a lane is running the task.
	ErrTaskRunning = errors.New("task is running")
)
