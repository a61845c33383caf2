package checkout

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"aeromedia/internal/config"
	"aeromedia/internal/logging"
	"aeromedia/internal/metrics"
	"aeromedia/internal/notifications"
	"aeromedia/internal/payments"
	"aeromedia/internal/services"
	"aeromedia/internal/store"
)

// Result describes the outcome of a checkout request. When AlreadyPurchased
// is set the caller holds a succeeded purchase and no session was created.
type Result struct {
	AlreadyPurchased bool
	SessionID        string
	URL              string
}

// Bridge connects packages to the payment provider.
type Bridge struct {
	store    *store.Store
	provider payments.Provider
	notifier notifications.Service
	metrics  *metrics.Metrics
	logger   *slog.Logger

	currency   string
	successURL string
	cancelURL  string
	now        func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock overrides the bridge's time source for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// New creates a checkout bridge.
func New(st *store.Store, provider payments.Provider, notifier notifications.Service, cfg *config.Config, logger *slog.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &Bridge{
		store:      st,
		provider:   provider,
		notifier:   notifier,
		logger:     logger.With(logging.String(logging.FieldComponent, "checkout")),
		currency:   cfg.Payments.Currency,
		successURL: cfg.Payments.SuccessURL,
		cancelURL:  cfg.Payments.CancelURL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CreateCheckout opens a hosted checkout session for the package behind the
// access code. A non-empty packageID must match the package the code
// resolves to. The price object is created lazily on first checkout and its
// reference cached on the package.
func (b *Bridge) CreateCheckout(ctx context.Context, packageID, accessCode, email string) (*Result, error) {
	accessCode = strings.TrimSpace(accessCode)
	if accessCode == "" {
		return nil, services.Wrap(services.ErrValidation, "checkout", "create", "access code is required", nil)
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil, services.Wrap(services.ErrValidation, "checkout", "create", "email is required", nil)
	}

	pkg, err := b.store.GetPackageByAccessCode(ctx, accessCode)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "checkout", "create", "look up package", err)
	}
	if pkg == nil || (packageID != "" && pkg.ID != packageID) {
		return nil, services.Wrap(services.ErrNotFound, "checkout", "create", "package not found", nil)
	}

	now := b.now()
	if pkg.Expired(now) {
		return nil, services.Wrap(services.ErrValidation, "checkout", "create", "package has expired", nil)
	}
	if !pkg.Purchasable(now) {
		return nil, services.Wrap(services.ErrValidation, "checkout", "create", "package does not require purchase", nil)
	}

	purchased, err := b.store.HasSucceededPurchase(ctx, pkg.ID, email)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "checkout", "create", "check prior purchases", err)
	}
	if purchased {
		return &Result{AlreadyPurchased: true}, nil
	}

	priceRef, err := b.ensurePriceRef(ctx, pkg)
	if err != nil {
		return nil, err
	}

	session, err := b.provider.CreateCheckoutSession(ctx, payments.SessionParams{
		PriceID:       priceRef,
		CustomerEmail: email,
		SuccessURL:    returnURL(b.successURL, pkg, true),
		CancelURL:     returnURL(b.cancelURL, pkg, false),
		Metadata: map[string]string{
			"package_id": pkg.ID,
			"email":      email,
		},
	})
	if err != nil {
		return nil, services.Wrap(services.ErrProvider, "checkout", "create", "create checkout session", err)
	}

	b.logger.Info("checkout session created",
		logging.String("package_id", pkg.ID),
		logging.String("session_id", session.ID))
	return &Result{SessionID: session.ID, URL: session.URL}, nil
}

// ensurePriceRef returns the cached provider price reference for the package,
// creating and persisting one on first use.
func (b *Bridge) ensurePriceRef(ctx context.Context, pkg *store.MediaPackage) (string, error) {
	if ref := strings.TrimSpace(pkg.PriceRef); ref != "" {
		return ref, nil
	}
	if pkg.PriceCents == nil || *pkg.PriceCents <= 0 {
		return "", services.Wrap(services.ErrConfiguration, "checkout", "create", "package has no price configured", nil)
	}

	price, err := b.provider.CreatePrice(ctx, payments.PriceParams{
		ProductName: pkg.Title,
		AmountCents: *pkg.PriceCents,
		Currency:    b.currency,
	})
	if err != nil {
		return "", services.Wrap(services.ErrProvider, "checkout", "create", "create price", err)
	}
	if err := b.store.SetPackagePriceRef(ctx, pkg.ID, price.ID); err != nil {
		return "", services.Wrap(services.ErrTransient, "checkout", "create", "cache price reference", err)
	}
	return price.ID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// returnURL appends the package id and access code to a configured redirect
// URL so the storefront can restore its state after the provider redirect.
// The success URL additionally carries the literal {CHECKOUT_SESSION_ID}
// placeholder, which the provider substitutes before redirecting.
func returnURL(base string, pkg *store.MediaPackage, success bool) string {
	if base == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	q := url.Values{}
	q.Set("package", pkg.ID)
	q.Set("code", pkg.AccessCode)
	full := base + sep + q.Encode()
	if success && !strings.Contains(base, "{CHECKOUT_SESSION_ID}") {
		full += "&session_id={CHECKOUT_SESSION_ID}"
	}
	return full
}
