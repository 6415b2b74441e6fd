package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tracksmith/internal/config"
)

const userAgent = "Tracksmith-Go/0.1.0"

// Service defines the notification surface exposed to pipeline components.
type Service interface {
	NotifyProjectCreated(ctx context.Context, theme, channelID string) error
	NotifyGenerationCompleted(ctx context.Context, theme string, okTracks, totalSlots int) error
	NotifyUploadCompleted(ctx context.Context, title, videoID string) error
	NotifyQueueStarted(ctx context.Context, count int) error
	NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error
	NotifyError(ctx context.Context, err error, context string) error
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

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyProjectCreated(ctx context.Context, theme, channelID string) error {
	theme = strings.TrimSpace(theme)
	message := fmt.Sprintf("New project: %s", theme)
	if channelID = strings.TrimSpace(channelID); channelID != "" {
		message = fmt.Sprintf("%s (channel %s)", message, channelID)
	}
	data := payload{
		title:   "Tracksmith - Project Created",
		message: message,
		tags:    []string{"tracksmith", "project", "created"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyGenerationCompleted(ctx context.Context, theme string, okTracks, totalSlots int) error {
	theme = strings.TrimSpace(theme)
	data := payload{
		title:   "Tracksmith - Generation Complete",
		message: fmt.Sprintf("Generated %d/%d tracks for: %s", okTracks, totalSlots, theme),
		tags:    []string{"tracksmith", "generate", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadCompleted(ctx context.Context, title, videoID string) error {
	title = strings.TrimSpace(title)
	data := payload{
		title:    "Tracksmith - Uploaded",
		message:  fmt.Sprintf("Video live: %s (id %s)", title, strings.TrimSpace(videoID)),
		tags:     []string{"tracksmith", "upload", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueStarted(ctx context.Context, count int) error {
	data := payload{
		title:   "Tracksmith - Queue Started",
		message: fmt.Sprintf("Started processing queue with %d items", count),
		tags:    []string{"tracksmith", "queue", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyQueueCompleted(ctx context.Context, processed, failed int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var message string
	var title string
	if failed == 0 {
		title = "Tracksmith - Queue Complete"
		message = fmt.Sprintf("Queue processing complete: %d items processed in %s", processed, durationText)
	} else {
		title = "Tracksmith - Queue Complete (with errors)"
		message = fmt.Sprintf("Queue processing complete: %d succeeded, %d failed in %s", processed-failed, failed, durationText)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"tracksmith", "queue", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
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
		title:    "Tracksmith - Error",
		message:  builder.String(),
		tags:     []string{"tracksmith", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Tracksmith - Test",
		message:  "Notification system test",
		tags:     []string{"tracksmith", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
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

func (noopService) NotifyProjectCreated(context.Context, string, string) error          { return nil }
func (noopService) NotifyGenerationCompleted(context.Context, string, int, int) error   { return nil }
func (noopService) NotifyUploadCompleted(context.Context, string, string) error         { return nil }
func (noopService) NotifyQueueStarted(context.Context, int) error                       { return nil }
func (noopService) NotifyQueueCompleted(context.Context, int, int, time.Duration) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error                    { return nil }
func (noopService) TestNotification(context.Context) error                              { return nil }
