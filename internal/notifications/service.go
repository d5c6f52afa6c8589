package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"taskq/internal/config"
)

const userAgent = "taskq-notify/0.1"

// Event identifies the kind of notification being published.
type Event string

const (
	EventTaskFailed    Event = "task_failed"
	EventTaskCompleted Event = "task_completed"
	EventTest          Event = "test"
)

// Payload carries the values a notification message is built from.
type Payload map[string]any

// Service publishes notifications.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed Service, or a no-op one when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	kind := payloadString(payload, "kind")
	if kind == "" {
		kind = "task"
	}
	label := fmt.Sprintf("%s #%s", kind, payloadString(payload, "id"))
	if desc := payloadString(payload, "description"); desc != "" {
		label = fmt.Sprintf("%s (%s)", label, desc)
	}

	switch event {
	case EventTaskFailed:
		body := "Failed: " + label
		if reason := payloadString(payload, "reason"); reason != "" {
			body += "\n" + reason
		}
		return message{
			title:    "taskq - Task Failed",
			body:     body,
			tags:     []string{"taskq", "task", "failed"},
			priority: "high",
		}, true
	case EventTaskCompleted:
		return message{
			title: "taskq - Task Complete",
			body:  "Completed: " + label,
			tags:  []string{"taskq", "task", "completed"},
		}, true
	case EventTest:
		return message{
			title:    "taskq - Test",
			body:     "Notification system test",
			tags:     []string{"taskq", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
