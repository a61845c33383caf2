package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"aeromedia/internal/config"
)

const userAgent = "Aeromedia-Go/0.1.0"

// Service defines the notification surface exposed to the rest of the app.
type Service interface {
	NotifyPurchaseCompleted(ctx context.Context, packageTitle, email string, amountCents int64, currency string) error
	NotifyRefund(ctx context.Context, packageTitle, paymentIntentID string) error
	NotifyUploadCompleted(ctx context.Context, objectPath string, sizeBytes int64) error
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
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		purchases: cfg.Notifications.Purchases,
		refunds:   cfg.Notifications.Refunds,
		uploads:   cfg.Notifications.Uploads,
		errors:    cfg.Notifications.Errors,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	purchases bool
	refunds   bool
	uploads   bool
	errors    bool
}

func (n *ntfyService) NotifyPurchaseCompleted(ctx context.Context, packageTitle, email string, amountCents int64, currency string) error {
	if !n.purchases {
		return nil
	}
	packageTitle = strings.TrimSpace(packageTitle)
	amount := fmt.Sprintf("%.2f %s", float64(amountCents)/100, strings.ToUpper(currency))
	data := payload{
		title:    "Aeromedia - Purchase",
		message:  fmt.Sprintf("Purchase completed: %s (%s) by %s", packageTitle, amount, email),
		tags:     []string{"aeromedia", "purchase", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRefund(ctx context.Context, packageTitle, paymentIntentID string) error {
	if !n.refunds {
		return nil
	}
	packageTitle = strings.TrimSpace(packageTitle)
	if packageTitle == "" {
		packageTitle = "unknown package"
	}
	data := payload{
		title:   "Aeromedia - Refund",
		message: fmt.Sprintf("Refund recorded: %s (intent %s)", packageTitle, paymentIntentID),
		tags:    []string{"aeromedia", "refund"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyUploadCompleted(ctx context.Context, objectPath string, sizeBytes int64) error {
	if !n.uploads {
		return nil
	}
	objectPath = strings.TrimSpace(objectPath)
	data := payload{
		title:   "Aeromedia - Upload Complete",
		message: fmt.Sprintf("Uploaded %s (%s)", objectPath, humanize.IBytes(uint64(sizeBytes))),
		tags:    []string{"aeromedia", "upload", "completed"},
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
		title:    "Aeromedia - Error",
		message:  builder.String(),
		tags:     []string{"aeromedia", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Aeromedia - Test",
		message:  "Notification system test",
		tags:     []string{"aeromedia", "test"},
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

func (noopService) NotifyPurchaseCompleted(context.Context, string, string, int64, string) error {
	return nil
}
func (noopService) NotifyRefund(context.Context, string, string) error         { return nil }
func (noopService) NotifyUploadCompleted(context.Context, string, int64) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }
