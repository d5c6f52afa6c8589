package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"taskq/internal/config"
	"taskq/internal/logging"
	"taskq/internal/notifications"
	"taskq/internal/queue"
	"taskq/internal/workflow"
)

type captured struct {
	title    string
	body     string
	tags     string
	priority string
}

func newNtfyServer(t *testing.T) (*httptest.Server, <-chan captured) {
	t.Helper()
	requests := make(chan captured, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		requests <- captured{
			title:    r.Header.Get("Title"),
			body:     string(body),
			tags:     r.Header.Get("Tags"),
			priority: r.Header.Get("Priority"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, requests
}

func configFor(topic string) *config.Config {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = topic
	return &cfg
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	svc := notifications.NewService(configFor(""))
	if err := svc.Publish(context.Background(), notifications.EventTaskFailed, notifications.Payload{"id": "1"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectBody     string
		expectTags     string
		expectPriority string
	}{
		{
			name:           "task failed",
			event:          notifications.EventTaskFailed,
			payload:        notifications.Payload{"id": "7", "kind": "http_lookup", "reason": "status 503"},
			expectTitle:    "taskq - Task Failed",
			expectBody:     "Failed: http_lookup #7\nstatus 503",
			expectTags:     "taskq,task,failed",
			expectPriority: "high",
		},
		{
			name:        "task completed",
			event:       notifications.EventTaskCompleted,
			payload:     notifications.Payload{"id": "3", "kind": "echo", "description": "nightly"},
			expectTitle: "taskq - Task Complete",
			expectBody:  "Completed: echo #3 (nightly)",
			expectTags:  "taskq,task,completed",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "taskq - Test",
			expectBody:     "Notification system test",
			expectTags:     "taskq,test",
			expectPriority: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, requests := newNtfyServer(t)
			svc := notifications.NewService(configFor(srv.URL))
			if err := svc.Publish(context.Background(), tt.event, tt.payload); err != nil {
				t.Fatalf("Publish: %v", err)
			}
			got := <-requests
			if got.title != tt.expectTitle {
				t.Fatalf("title = %q, want %q", got.title, tt.expectTitle)
			}
			if got.body != tt.expectBody {
				t.Fatalf("body = %q, want %q", got.body, tt.expectBody)
			}
			if got.tags != tt.expectTags {
				t.Fatalf("tags = %q, want %q", got.tags, tt.expectTags)
			}
			if got.priority != tt.expectPriority {
				t.Fatalf("priority = %q, want %q", got.priority, tt.expectPriority)
			}
		})
	}
}

func TestPublishReportsServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer srv.Close()

	svc := notifications.NewService(configFor(srv.URL))
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
	if err := svc.Publish(context.Background(), notifications.Event("bogus"), nil); err == nil {
		t.Fatal("expected error for unknown event")
	}
}

type recordingService struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingService) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func TestListenerFiltersOutcomes(t *testing.T) {
	failed := &queue.TaskRecord{ID: 1, Kind: "echo", Status: queue.StatusFailed, FailureReason: "boom"}
	complete := &queue.TaskRecord{ID: 2, Kind: "echo", Status: queue.StatusComplete}
	changes := []workflow.TaskChange{
		{Action: workflow.TaskCreated, TaskID: 1, Task: failed},
		{Action: workflow.TaskCompleted, TaskID: 1, Task: failed},
		{Action: workflow.TaskCompleted, TaskID: 2, Task: complete},
		{Action: workflow.TaskCompleted, TaskID: 0},
	}

	tests := []struct {
		name string
		opts notifications.ListenerOptions
		want []notifications.Event
	}{
		{"failures only", notifications.ListenerOptions{Failures: true}, []notifications.Event{notifications.EventTaskFailed}},
		{"completions only", notifications.ListenerOptions{Completions: true}, []notifications.Event{notifications.EventTaskCompleted}},
		{"both", notifications.ListenerOptions{Failures: true, Completions: true}, []notifications.Event{notifications.EventTaskFailed, notifications.EventTaskCompleted}},
		{"none", notifications.ListenerOptions{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingService{}
			listener := notifications.Listener(context.Background(), rec, logging.NewNop(), tt.opts)
			for _, change := range changes {
				listener(change)
			}
			if len(rec.events) != len(tt.want) {
				t.Fatalf("events = %v, want %v", rec.events, tt.want)
			}
			for i := range tt.want {
				if rec.events[i] != tt.want[i] {
					t.Fatalf("events = %v, want %v", rec.events, tt.want)
				}
			}
		})
	}
}

func TestListenerStopsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recordingService{}
	listener := notifications.Listener(ctx, rec, nil, notifications.ListenerOptions{Failures: true})
	listener(workflow.TaskChange{Action: workflow.TaskCompleted, TaskID: 1, Task: &queue.TaskRecord{ID: 1, Status: queue.StatusFailed}})
	if len(rec.events) != 0 {
		t.Fatalf("expected no publish after cancel, got %v", rec.events)
	}
}
