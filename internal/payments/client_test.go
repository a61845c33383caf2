package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCreatePriceSendsFormEncodedRequest(t *testing.T) {
	var captured *http.Request
	var capturedBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		capturedBody = r.PostForm.Encode()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"price_123","unit_amount":4500,"currency":"usd"}`))
	}))
	defer server.Close()

	client, err := New("sk_test_abc", server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	price, err := client.CreatePrice(context.Background(), PriceParams{
		ProductName: "Sunrise Flight Photos",
		AmountCents: 4500,
		Currency:    "USD",
	})
	if err != nil {
		t.Fatalf("CreatePrice failed: %v", err)
	}
	if price.ID != "price_123" {
		t.Fatalf("unexpected price id %q", price.ID)
	}
	if captured.URL.Path != "/prices" {
		t.Fatalf("unexpected path %q", captured.URL.Path)
	}
	if got := captured.Header.Get("Authorization"); got != "Bearer sk_test_abc" {
		t.Fatalf("unexpected authorization header %q", got)
	}
	if !strings.Contains(capturedBody, "unit_amount=4500") {
		t.Fatalf("body missing amount: %s", capturedBody)
	}
	if !strings.Contains(capturedBody, "currency=usd") {
		t.Fatalf("currency should be lowercased: %s", capturedBody)
	}
}

func TestCreateCheckoutSessionCarriesMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/sessions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("metadata[package_id]"); got != "pkg-1" {
			t.Errorf("unexpected metadata: %q", got)
		}
		if got := r.PostForm.Get("customer_email"); got != "buyer@example.com" {
			t.Errorf("unexpected email: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"cs_test_1","url":"https://pay.example/cs_test_1","payment_intent":"pi_1","status":"open"}`))
	}))
	defer server.Close()

	client, err := New("sk_test_abc", server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	session, err := client.CreateCheckoutSession(context.Background(), SessionParams{
		PriceID:       "price_123",
		CustomerEmail: "buyer@example.com",
		SuccessURL:    "https://shop.example/thanks?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     "https://shop.example/cancel",
		Metadata:      map[string]string{"package_id": "pkg-1"},
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession failed: %v", err)
	}
	if session.URL != "https://pay.example/cs_test_1" {
		t.Fatalf("unexpected session url %q", session.URL)
	}
}

func TestClientReportsProviderErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"message":"card declined"}}`))
	}))
	defer server.Close()

	client, err := New("sk_test_abc", server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = client.CreateCheckoutSession(context.Background(), SessionParams{
		PriceID:    "price_123",
		SuccessURL: "https://shop.example/thanks",
		CancelURL:  "https://shop.example/cancel",
	})
	if err == nil {
		t.Fatal("expected error from provider failure")
	}
	if !strings.Contains(err.Error(), "402") {
		t.Fatalf("error should carry status code: %v", err)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	if _, err := New("", "https://api.example", time.Second); err == nil {
		t.Fatal("expected error for empty secret key")
	}
	if _, err := New("sk_test", "", time.Second); err == nil {
		t.Fatal("expected error for empty base url")
	}
}
