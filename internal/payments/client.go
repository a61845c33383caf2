package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const userAgent = "Aeromedia-Go/0.1.0"

// Price is a reusable price object registered with the provider.
type Price struct {
	ID         string `json:"id"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

// CheckoutSession is a hosted checkout created for a single package.
type CheckoutSession struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	PaymentIntent string `json:"payment_intent"`
	Status        string `json:"status"`
}

// PriceParams describes the price to register for a package.
type PriceParams struct {
	ProductName string
	AmountCents int64
	Currency    string
}

// SessionParams describes the checkout session to create.
type SessionParams struct {
	PriceID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Provider defines the payment operations used by the checkout bridge.
type Provider interface {
	CreatePrice(ctx context.Context, params PriceParams) (*Price, error)
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*CheckoutSession, error)
}

// Client calls the payment provider's REST API.
type Client struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

var _ Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a payment provider client.
func New(secretKey, baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil, errors.New("payments secret key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("payments base url required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	client := &Client{
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// CreatePrice registers a one-time price with the provider and returns its id.
func (c *Client) CreatePrice(ctx context.Context, params PriceParams) (*Price, error) {
	if params.AmountCents <= 0 {
		return nil, errors.New("price amount must be positive")
	}
	name := strings.TrimSpace(params.ProductName)
	if name == "" {
		return nil, errors.New("product name required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Currency))
	if currency == "" {
		return nil, errors.New("currency required")
	}

	form := url.Values{}
	form.Set("unit_amount", strconv.FormatInt(params.AmountCents, 10))
	form.Set("currency", currency)
	form.Set("product_data[name]", name)

	var price Price
	if err := c.postForm(ctx, "/prices", form, &price); err != nil {
		return nil, err
	}
	return &price, nil
}

// CreateCheckoutSession opens a hosted checkout for a previously created price.
func (c *Client) CreateCheckoutSession(ctx context.Context, params SessionParams) (*CheckoutSession, error) {
	if strings.TrimSpace(params.PriceID) == "" {
		return nil, errors.New("price id required")
	}
	if strings.TrimSpace(params.SuccessURL) == "" {
		return nil, errors.New("success url required")
	}
	if strings.TrimSpace(params.CancelURL) == "" {
		return nil, errors.New("cancel url required")
	}

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("line_items[0][price]", params.PriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if email := strings.TrimSpace(params.CustomerEmail); email != "" {
		form.Set("customer_email", email)
	}
	for key, value := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", key), value)
	}

	var session CheckoutSession
	if err := c.postForm(ctx, "/checkout/sessions", form, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		return fmt.Errorf("execute provider request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("provider %s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode provider response: %w", err)
	}
	return nil
}

// Noop is a Provider that refuses every call. It stands in when no payment
// secret is configured so callers get a clear error instead of a nil pointer.
type Noop struct{}

var _ Provider = Noop{}

func (Noop) CreatePrice(context.Context, PriceParams) (*Price, error) {
	return nil, errors.New("payments are not configured")
}

func (Noop) CreateCheckoutSession(context.Context, SessionParams) (*CheckoutSession, error) {
	return nil, errors.New("payments are not configured")
}
