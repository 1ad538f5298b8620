package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"cdrip/internal/config"
)

const userAgent = "cdrip/0.1.0"

// Service defines the notification surface used by the ripper and daemon.
type Service interface {
	NotifyDiscDetected(ctx context.Context, device, discID string) error
	NotifyRipStarted(ctx context.Context, discID string, tracks int) error
	NotifyRipCompleted(ctx context.Context, summary RipSummary) error
	NotifyRipFailed(ctx context.Context, discID string, err error) error
	TestNotification(ctx context.Context) error
}

// RipSummary is what a completion notification reports.
type RipSummary struct {
	DiscID   string
	Tracks   int
	Failed   int
	Warnings int
	Bytes    int64
	Duration time.Duration
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
		rip:      cfg.Notifications.Rip,
		errors:   cfg.Notifications.Errors,
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
	rip      bool
	errors   bool
}

func discLabel(discID string) string {
	if discID = strings.TrimSpace(discID); discID == "" {
		return "unknown disc"
	}
	return "disc " + discID
}

func (n *ntfyService) NotifyDiscDetected(ctx context.Context, device, discID string) error {
	if !n.rip {
		return nil
	}
	return n.send(ctx, payload{
		title:   "cdrip - Disc Detected",
		message: fmt.Sprintf("💿 Audio CD detected in %s (%s)", strings.TrimSpace(device), discLabel(discID)),
		tags:    []string{"cdrip", "disc", "detected"},
	})
}

func (n *ntfyService) NotifyRipStarted(ctx context.Context, discID string, tracks int) error {
	if !n.rip {
		return nil
	}
	return n.send(ctx, payload{
		title:   "cdrip - Rip Started",
		message: fmt.Sprintf("Started ripping %s: %d tracks", discLabel(discID), tracks),
		tags:    []string{"cdrip", "rip", "started"},
	})
}

func (n *ntfyService) NotifyRipCompleted(ctx context.Context, summary RipSummary) error {
	if !n.rip {
		return nil
	}
	duration := summary.Duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}

	title := "cdrip - Rip Complete"
	message := fmt.Sprintf("🎵 Ripped %s: %d tracks, %s in %s",
		discLabel(summary.DiscID), summary.Tracks, humanize.Bytes(uint64(max(summary.Bytes, 0))), duration)
	if summary.Failed > 0 {
		title = "cdrip - Rip Complete (with errors)"
		message = fmt.Sprintf("%s\n%d tracks failed", message, summary.Failed)
	}
	if summary.Warnings > 0 {
		message = fmt.Sprintf("%s\n%s read warnings", message, humanize.Comma(int64(summary.Warnings)))
	}
	return n.send(ctx, payload{
		title:   title,
		message: message,
		tags:    []string{"cdrip", "rip", "completed"},
	})
}

func (n *ntfyService) NotifyRipFailed(ctx context.Context, discID string, err error) error {
	if !n.errors {
		return nil
	}
	var builder strings.Builder
	builder.WriteString("❌ Rip failed for ")
	builder.WriteString(discLabel(discID))
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	return n.send(ctx, payload{
		title:    "cdrip - Error",
		message:  builder.String(),
		tags:     []string{"cdrip", "error", "alert"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "cdrip - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"cdrip", "test"},
		priority: "low",
	})
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

func (noopService) NotifyDiscDetected(context.Context, string, string) error { return nil }
func (noopService) NotifyRipStarted(context.Context, string, int) error      { return nil }
func (noopService) NotifyRipCompleted(context.Context, RipSummary) error     { return nil }
func (noopService) NotifyRipFailed(context.Context, string, error) error     { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
