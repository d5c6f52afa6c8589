package task

import (
	"context"
	"sync"
	"sync/atomic"
)

// DefaultRetryLimit is the number of requeues a task gets unless it says otherwise.
const DefaultRetryLimit = 5

// Task is a unit of work executed by a lane worker.
//
// Run returns true when the work is done and false when it should be retried
// later. A non-nil error (or a panic) is an unexpected failure: the task is
// failed immediately without further retries.
type Task interface {
	Kind() string
	Description() string
	RetryLimit() int
	Category() int64
	Priority() int
	Run(rc *Context) (bool, error)
	Abort()
	IsAborting() bool
}

// Base supplies the bookkeeping every task needs. Embed it by value in a task
// struct; its exported fields are persisted with the task payload.
type Base struct {
	MaxRetries *int  `json:"retry_limit,omitempty" validate:"omitempty,gte=0,lte=100"`
	Prio       int   `json:"priority,omitempty" validate:"gte=-1000,lte=1000"`
	CategoryID int64 `json:"category,omitempty"`

	aborting atomic.Bool
	mu       sync.Mutex
	cancel   context.CancelFunc
}

// RetryLimit returns the configured limit or DefaultRetryLimit.
func (b *Base) RetryLimit() int {
	if b.MaxRetries != nil {
		return *b.MaxRetries
	}
	return DefaultRetryLimit
}

// SetRetryLimit overrides the default retry limit.
func (b *Base) SetRetryLimit(n int) {
	if n < 0 {
		n = 0
	}
	b.MaxRetries = &n
}

func (b *Base) Priority() int { return b.Prio }

func (b *Base) SetPriority(p int) { b.Prio = p }

func (b *Base) Category() int64 { return b.CategoryID }

func (b *Base) SetCategory(c int64) { b.CategoryID = c }

// Abort asks the task to stop. Long-running Run implementations should poll
// IsAborting or watch the run context, which is cancelled as well.
func (b *Base) Abort() {
	b.aborting.Store(true)
	b.mu.Lock()
	cancel := b.cancel
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (b *Base) IsAborting() bool {
	return b.aborting.Load()
}

func (b *Base) bindCancel(cancel context.CancelFunc) {
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()
	if cancel != nil && b.aborting.Load() {
		cancel()
	}
}

// cancelBinder is satisfied by every task that embeds Base.
type cancelBinder interface {
	bindCancel(context.CancelFunc)
}
