package workflow

import (
	"fmt"
	"log/slog"
	"sync"

	"taskq/internal/logging"
	"taskq/internal/queue"
)

// TaskAction describes what happened to a task.
type TaskAction string

const (
	TaskCreated   TaskAction = "created"
	TaskUpdated   TaskAction = "updated"
	TaskDeleted   TaskAction = "deleted"
	TaskCompleted TaskAction = "completed"
	TaskRunning   TaskAction = "running"
	TaskWaiting   TaskAction = "waiting"
)

// EventAction describes what happened to an event.
type EventAction string

const (
	EventCreated EventAction = "created"
	EventUpdated EventAction = "updated"
	EventDeleted EventAction = "deleted"
)

// TaskChange is delivered to task listeners. Task is a snapshot of the row
// after the change; it is nil for deletions and bulk changes, and TaskID is
// zero for bulk changes such as cleanup.
type TaskChange struct {
	Action TaskAction
	TaskID int64
	Task   *queue.TaskRecord
}

// EventChange is delivered to event listeners. Event is nil for deletions
// and bulk changes.
type EventChange struct {
	Action  EventAction
	EventID int64
	Event   *queue.EventRecord
}

type (
	TaskListener  func(TaskChange)
	EventListener func(EventChange)
)

// Subscription is the handle returned when registering a listener.
type Subscription struct {
	id   uint64
	n    *notifier
	once sync.Once
}

// Close stops delivery to the listener. Notifications already queued for it
// may still arrive. Close is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil || s.n == nil {
		return
	}
	s.once.Do(func() { s.n.remove(s.id) })
}

// RegisterTaskListener subscribes fn to task changes.
func (m *Manager) RegisterTaskListener(fn TaskListener) *Subscription {
	return m.notifier.addTask(fn)
}

// RegisterEventListener subscribes fn to event changes.
func (m *Manager) RegisterEventListener(fn EventListener) *Subscription {
	return m.notifier.addEvent(fn)
}

// UnregisterListener is equivalent to sub.Close.
func (m *Manager) UnregisterListener(sub *Subscription) {
	sub.Close()
}

type taskSub struct {
	id uint64
	fn TaskListener
}

type eventSub struct {
	id uint64
	fn EventListener
}

// notifier fans changes out to listeners in order. Deliveries are queued and
// drained by a goroutine that only exists while the queue is non-empty, so
// callers never block on a slow listener.
type notifier struct {
	logger *slog.Logger

	mu          sync.Mutex
	nextID      uint64
	tasks       []taskSub
	events      []eventSub
	pending     []func()
	dispatching bool
}

func newNotifier(logger *slog.Logger) *notifier {
	return &notifier{logger: logger}
}

func (n *notifier) addTask(fn TaskListener) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.tasks = append(n.tasks, taskSub{id: n.nextID, fn: fn})
	return &Subscription{id: n.nextID, n: n}
}

func (n *notifier) addEvent(fn EventListener) *Subscription {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.nextID++
	n.events = append(n.events, eventSub{id: n.nextID, fn: fn})
	return &Subscription{id: n.nextID, n: n}
}

func (n *notifier) remove(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, sub := range n.tasks {
		if sub.id == id {
			n.tasks = append(n.tasks[:i:i], n.tasks[i+1:]...)
			return
		}
	}
	for i, sub := range n.events {
		if sub.id == id {
			n.events = append(n.events[:i:i], n.events[i+1:]...)
			return
		}
	}
}

func (n *notifier) taskChanged(action TaskAction, id int64, rec *queue.TaskRecord) {
	change := TaskChange{Action: action, TaskID: id}
	if rec != nil {
		snapshot := *rec
		change.Task = &snapshot
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.tasks {
		fn := sub.fn
		n.pending = append(n.pending, func() { fn(change) })
	}
	n.kickLocked()
}

func (n *notifier) eventChanged(action EventAction, id int64, event *queue.EventRecord) {
	change := EventChange{Action: action, EventID: id}
	if event != nil {
		snapshot := *event
		change.Event = &snapshot
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sub := range n.events {
		fn := sub.fn
		n.pending = append(n.pending, func() { fn(change) })
	}
	n.kickLocked()
}

func (n *notifier) kickLocked() {
	if n.dispatching || len(n.pending) == 0 {
		return
	}
	n.dispatching = true
	go n.dispatch()
}

func (n *notifier) dispatch() {
	for {
		n.mu.Lock()
		if len(n.pending) == 0 {
			n.dispatching = false
			n.pending = nil
			n.mu.Unlock()
			return
		}
		next := n.pending[0]
		n.pending[0] = nil
		n.pending = n.pending[1:]
		n.mu.Unlock()

		n.deliver(next)
	}
}

func (n *notifier) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Warn("change listener panicked",
				logging.String("panic", fmt.Sprint(r)),
				logging.String(logging.FieldEventType, "listener_panic"),
				logging.String(logging.FieldErrorHint, "fix the listener; other listeners are unaffected"),
			)
		}
	}()
	fn()
}
