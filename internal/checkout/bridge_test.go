package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"aeromedia/internal/checkout"
	"aeromedia/internal/logging"
	"aeromedia/internal/payments"
	"aeromedia/internal/services"
	"aeromedia/internal/store"
	"aeromedia/internal/testsupport"
)

type fakeProvider struct {
	priceCalls   int
	sessionCalls int
	lastSession  payments.SessionParams
	priceErr     error
}

func (f *fakeProvider) CreatePrice(_ context.Context, params payments.PriceParams) (*payments.Price, error) {
	f.priceCalls++
	if f.priceErr != nil {
		return nil, f.priceErr
	}
	return &payments.Price{
		ID:         fmt.Sprintf("price_%d", f.priceCalls),
		UnitAmount: params.AmountCents,
		Currency:   params.Currency,
	}, nil
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, params payments.SessionParams) (*payments.CheckoutSession, error) {
	f.sessionCalls++
	f.lastSession = params
	return &payments.CheckoutSession{
		ID:  fmt.Sprintf("cs_%d", f.sessionCalls),
		URL: fmt.Sprintf("https://pay.example/cs_%d", f.sessionCalls),
	}, nil
}

func priceCents(v int64) *int64 { return &v }

func TestCreateCheckoutRejectsFreePackages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := &fakeProvider{}
	bridge := checkout.New(st, provider, nil, cfg, logging.NewNop())

	testsupport.NewPackage(t, st, store.NewPackageParams{
		AccessCode:       "FREE-CK",
		RequiresPurchase: false,
	})

	_, err := bridge.CreateCheckout(context.Background(), "", "FREE-CK", "buyer@example.com")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if provider.sessionCalls != 0 {
		t.Fatal("no session should be created for a free package")
	}
}

func TestCreateCheckoutCachesPriceReference(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	provider := &fakeProvider{}
	bridge := checkout.New(st, provider, nil, cfg, logging.NewNop())

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{
		AccessCode:       "PAID-CK",
		RequiresPurchase: true,
		PriceCents:       priceCents(4500),
	})

	result, err := bridge.CreateCheckout(ctx, "", "PAID-CK", "first@example.com")
	if err != nil {
		t.Fatalf("CreateCheckout failed: %v", err)
	}
	if result.AlreadyPurchased || result.URL == "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if provider.priceCalls != 1 {
		t.Fatalf("expected one price creation, got %d", provider.priceCalls)
	}

	stored, err := st.GetPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("GetPackage failed: %v", err)
	}
	if stored.PriceRef != "price_1" {
		t.Fatalf("price reference not cached: %q", stored.PriceRef)
	}

	if _, err := bridge.CreateCheckout(ctx, "", "PAID-CK", "second@example.com"); err != nil {
		t.Fatalf("second CreateCheckout failed: %v", err)
	}
	if provider.priceCalls != 1 {
		t.Fatalf("cached price should be reused, got %d creations", provider.priceCalls)
	}
	if provider.lastSession.Metadata["package_id"] != pkg.ID {
		t.Fatalf("session metadata missing package id: %+v", provider.lastSession.Metadata)
	}
}

func TestCreateCheckoutReportsExistingPurchase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	provider := &fakeProvider{}
	bridge := checkout.New(st, provider, nil, cfg, logging.NewNop())

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{
		AccessCode:       "OWNED-CK",
		RequiresPurchase: true,
		PriceCents:       priceCents(4500),
	})
	if _, err := st.InsertPurchase(ctx, store.NewPurchaseParams{
		PackageID:         pkg.ID,
		Email:             "buyer@example.com",
		CheckoutSessionID: "cs_prior",
		AmountCents:       4500,
		Currency:          "usd",
	}); err != nil {
		t.Fatalf("InsertPurchase failed: %v", err)
	}

	result, err := bridge.CreateCheckout(ctx, pkg.ID, "OWNED-CK", "Buyer@Example.COM")
	if err != nil {
		t.Fatalf("CreateCheckout failed: %v", err)
	}
	if !result.AlreadyPurchased {
		t.Fatal("expected already-purchased signal")
	}
	if provider.sessionCalls != 0 {
		t.Fatal("no session should be created for an existing purchase")
	}
}

func TestCreateCheckoutRejectsExpiredPackages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := &fakeProvider{}
	future := time.Now().Add(60 * 24 * time.Hour)
	bridge := checkout.New(st, provider, nil, cfg, logging.NewNop(),
		checkout.WithClock(func() time.Time { return future }))

	testsupport.NewPackage(t, st, store.NewPackageParams{
		AccessCode:       "EXP-CK",
		RequiresPurchase: true,
		PriceCents:       priceCents(4500),
	})

	_, err := bridge.CreateCheckout(context.Background(), "", "EXP-CK", "buyer@example.com")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for expired package, got %v", err)
	}
}

func TestCreateCheckoutRequiresConfiguredPrice(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	provider := &fakeProvider{}
	bridge := checkout.New(st, provider, nil, cfg, logging.NewNop())

	testsupport.NewPackage(t, st, store.NewPackageParams{
		AccessCode:       "NOPRICE-CK",
		RequiresPurchase: true,
	})

	_, err := bridge.CreateCheckout(context.Background(), "", "NOPRICE-CK", "buyer@example.com")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCreateCheckoutRoundTripsPackageInRedirectURLs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Payments.SuccessURL = "https://example.test/success"
	cfg.Payments.CancelURL = "https://example.test/cancel"
	st := testsupport.MustOpenStore(t, cfg)
	provider := &fakeProvider{}
	bridge := checkout.New(st, provider, nil, cfg, logging.NewNop())

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{
		AccessCode:       "URL-CK",
		RequiresPurchase: true,
		PriceCents:       priceCents(2500),
	})

	if _, err := bridge.CreateCheckout(context.Background(), "", "URL-CK", "buyer@example.com"); err != nil {
		t.Fatalf("CreateCheckout failed: %v", err)
	}

	success := provider.lastSession.SuccessURL
	for _, want := range []string{"package=" + pkg.ID, "code=URL-CK", "session_id={CHECKOUT_SESSION_ID}"} {
		if !strings.Contains(success, want) {
			t.Errorf("success url %q missing %q", success, want)
		}
	}
	cancel := provider.lastSession.CancelURL
	if !strings.Contains(cancel, "package="+pkg.ID) || !strings.Contains(cancel, "code=URL-CK") {
		t.Errorf("cancel url %q missing package round-trip", cancel)
	}
	if strings.Contains(cancel, "{CHECKOUT_SESSION_ID}") {
		t.Errorf("cancel url %q should not carry the session placeholder", cancel)
	}
}
