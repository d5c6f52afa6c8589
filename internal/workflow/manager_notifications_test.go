package workflow_test

import (
	"sync"
	"testing"
	"time"

	"taskq/internal/task"
	"taskq/internal/workflow"
)

func TestListenersReceiveLifecycleInOrder(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex
	var actions []workflow.TaskAction
	completed := make(chan struct{})
	sub := h.mgr.RegisterTaskListener(func(change workflow.TaskChange) {
		mu.Lock()
		defer mu.Unlock()
		actions = append(actions, change.Action)
		if change.Action == workflow.TaskCompleted {
			if change.Task == nil {
				t.Errorf("completed notification without task snapshot")
			}
			close(completed)
		}
	})
	defer sub.Close()

	h.start(t)
	h.enqueue(t, "watched", "main", nil)
	waitFor(t, completed, "completed notification")

	mu.Lock()
	defer mu.Unlock()
	want := []workflow.TaskAction{workflow.TaskCreated, workflow.TaskRunning, workflow.TaskCompleted}
	if len(actions) != len(want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	for i := range want {
		if actions[i] != want[i] {
			t.Fatalf("actions = %v, want %v", actions, want)
		}
	}
}

func TestListenerPanicDoesNotStopDelivery(t *testing.T) {
	h := newHarness(t)

	panicky := h.mgr.RegisterEventListener(func(workflow.EventChange) { panic("listener bug") })
	defer panicky.Close()
	got := make(chan workflow.EventChange, 4)
	sub := h.mgr.RegisterEventListener(func(change workflow.EventChange) { got <- change })
	defer sub.Close()

	h.script.on("noisy", func(rc *task.Context) (bool, error) {
		return true, rc.RecordEvent("first page fetched", nil)
	})
	h.start(t)
	rec := h.enqueue(t, "noisy", "main", nil)

	select {
	case change := <-got:
		if change.Action != workflow.EventCreated || change.Event == nil || *change.Event.TaskID != rec.ID {
			t.Fatalf("unexpected event change: %+v", change)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event notification")
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	h := newHarness(t)

	calls := make(chan workflow.TaskChange, 16)
	sub := h.mgr.RegisterTaskListener(func(change workflow.TaskChange) { calls <- change })

	h.enqueue(t, "first", "main", nil)
	select {
	case <-calls:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first notification")
	}

	h.mgr.UnregisterListener(sub)
	sub.Close()

	// A second listener registered after the close acts as a barrier: once
	// it sees the change, any delivery to the closed one would have happened.
	barrier := make(chan struct{}, 1)
	other := h.mgr.RegisterTaskListener(func(workflow.TaskChange) {
		select {
		case barrier <- struct{}{}:
		default:
		}
	})
	defer other.Close()

	h.enqueue(t, "second", "main", nil)
	waitFor(t, barrier, "barrier notification")
	select {
	case change := <-calls:
		t.Fatalf("closed subscription received %+v", change)
	default:
	}
}
