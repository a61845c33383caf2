package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"aeromedia/internal/notifications"
	"aeromedia/internal/testsupport"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(cfg)
	if err := svc.NotifyPurchaseCompleted(context.Background(), "Sunrise Flight", "buyer@example.com", 4500, "usd"); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPurchase(t *testing.T) {
	var gotTitle, gotTags, gotPriority, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTitle = r.Header.Get("Title")
		gotTags = r.Header.Get("Tags")
		gotPriority = r.Header.Get("Priority")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Purchases = true
	svc := notifications.NewService(cfg)

	if err := svc.NotifyPurchaseCompleted(context.Background(), "Sunrise Flight", "buyer@example.com", 4500, "usd"); err != nil {
		t.Fatalf("NotifyPurchaseCompleted failed: %v", err)
	}
	if gotTitle != "Aeromedia - Purchase" {
		t.Fatalf("unexpected title %q", gotTitle)
	}
	if gotTags != "aeromedia,purchase,completed" {
		t.Fatalf("unexpected tags %q", gotTags)
	}
	if gotPriority != "high" {
		t.Fatalf("unexpected priority %q", gotPriority)
	}
	if gotBody != "Purchase completed: Sunrise Flight (45.00 USD) by buyer@example.com" {
		t.Fatalf("unexpected message %q", gotBody)
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Purchases = false
	cfg.Notifications.Uploads = true
	svc := notifications.NewService(cfg)

	if err := svc.NotifyPurchaseCompleted(context.Background(), "Sunset Flight", "a@b.c", 100, "usd"); err != nil {
		t.Fatalf("disabled purchase notify returned error: %v", err)
	}
	if requests != 0 {
		t.Fatalf("disabled toggle should not send, got %d requests", requests)
	}

	if err := svc.NotifyUploadCompleted(context.Background(), "pkg-1/photo.jpg", 2048); err != nil {
		t.Fatalf("NotifyUploadCompleted failed: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected 1 request, got %d", requests)
	}
}

func TestNtfyServiceReportsServerErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Errors = true
	svc := notifications.NewService(cfg)

	if err := svc.NotifyError(context.Background(), io.ErrUnexpectedEOF, "webhook"); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
