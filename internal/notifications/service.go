package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"archivist/internal/config"
)

const userAgent = "Archivist-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyUploadReceived(ctx context.Context, title string, sizeBytes int64) error
	NotifyProcessingCompleted(ctx context.Context, title string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
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
		endpoint:    topic,
		client:      &http.Client{Timeout: timeout},
		uploads:     cfg.Notifications.Uploads,
		processing:  cfg.Notifications.Processing,
		errors:      cfg.Notifications.Errors,
		dedupWindow: time.Duration(cfg.Notifications.DedupWindowSeconds) * time.Second,
		lastSent:    make(map[string]time.Time),
		now:         time.Now,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	uploads    bool
	processing bool
	errors     bool

	dedupWindow time.Duration
	mu          sync.Mutex
	lastSent    map[string]time.Time
	now         func() time.Time
}

func (n *ntfyService) NotifyUploadReceived(ctx context.Context, title string, sizeBytes int64) error {
	if !n.uploads {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:   "Archivist - Upload Received",
		message: fmt.Sprintf("Upload received: %s (%d bytes)", title, sizeBytes),
		tags:    []string{"archivist", "upload", "received"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyProcessingCompleted(ctx context.Context, title string) error {
	if !n.processing {
		return nil
	}
	title = strings.TrimSpace(title)
	data := payload{
		title:    "Archivist - Complete",
		message:  fmt.Sprintf("Processing complete: %s", title),
		tags:     []string{"archivist", "pipeline", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Archivist - Error",
		message:  builder.String(),
		tags:     []string{"archivist", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Archivist - Test",
		message:  "Notification system test",
		tags:     []string{"archivist", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

// suppressed dedupes identical messages inside the configured window so a
// flapping stage does not flood the topic.
func (n *ntfyService) suppressed(message string) bool {
	if n.dedupWindow <= 0 {
		return false
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.now()
	if last, ok := n.lastSent[message]; ok && now.Sub(last) < n.dedupWindow {
		return true
	}
	n.lastSent[message] = now
	return false
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if n.suppressed(data.message) {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func (noopService) NotifyUploadReceived(context.Context, string, int64) error { return nil }
func (noopService) NotifyProcessingCompleted(context.Context, string) error   { return nil }
func (noopService) NotifyError(context.Context, error, string) error          { return nil }
func (noopService) TestNotification(context.Context) error                    { return nil }
