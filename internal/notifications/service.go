package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"panelcast/internal/config"
)

const userAgent = "panelcast/0.1.0"

// Event identifies a notification type.
type Event string

const (
	EventJobStarted   Event = "job_started"
	EventJobSucceeded Event = "job_succeeded"
	EventJobFailed    Event = "job_failed"
	EventTest         Event = "test"
)

// Payload carries event fields. Recognized keys: job_id, colorize,
// panel_view, artifact, stage, error, duration.
type Payload map[string]any

// Service publishes job events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
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
		enabled: map[Event]bool{
			EventJobStarted:   cfg.Notifications.JobStarted,
			EventJobSucceeded: cfg.Notifications.JobCompleted,
			EventJobFailed:    cfg.Notifications.Errors,
			EventTest:         true,
		},
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
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return fmt.Errorf("unknown notification event %q", event)
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobStarted:
		return message{
			title: "Panelcast - Job Started",
			body: fmt.Sprintf("Generating video (colorize: %s, panel view: %s)",
				yesNo(payload["colorize"]), yesNo(payload["panel_view"])),
			tags: []string{"panelcast", "job", "started"},
		}, true
	case EventJobSucceeded:
		body := fmt.Sprintf("✅ Video ready: %s", text(payload["artifact"]))
		if d, ok := payload["duration"].(time.Duration); ok && d > 0 {
			body += fmt.Sprintf("\nTook %s", d.Round(time.Second))
		}
		return message{
			title:    "Panelcast - Video Ready",
			body:     body,
			tags:     []string{"panelcast", "job", "completed"},
			priority: "high",
		}, true
	case EventJobFailed:
		var b strings.Builder
		b.WriteString("❌ Job failed")
		if stage := text(payload["stage"]); stage != "" {
			b.WriteString(" at ")
			b.WriteString(stage)
		}
		b.WriteString(": ")
		if reason := text(payload["error"]); reason != "" {
			b.WriteString(reason)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "Panelcast - Job Failed",
			body:     b.String(),
			tags:     []string{"panelcast", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "Panelcast - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"panelcast", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case error:
		return strings.TrimSpace(val.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(val))
	}
}

func yesNo(v any) string {
	if b, ok := v.(bool); ok && b {
		return "yes"
	}
	return "no"
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
