package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"aeromedia/internal/checkout"
	"aeromedia/internal/logging"
	"aeromedia/internal/payments"
	"aeromedia/internal/store"
	"aeromedia/internal/testsupport"
)

const webhookSecret = "whsec_test_local"

func newFulfiller(t *testing.T, st *store.Store) *checkout.Fulfiller {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	bridge := checkout.New(st, &fakeProvider{}, nil, cfg, logging.NewNop())
	verifier, err := payments.NewVerifier(webhookSecret)
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}
	return checkout.NewFulfiller(bridge, verifier)
}

func signedBody(body string) ([]byte, string) {
	raw := []byte(body)
	return raw, payments.Sign(webhookSecret, time.Now(), raw)
}

func completedEvent(packageID, sessionID, email string) string {
	return fmt.Sprintf(`{
        "id": "evt_1",
        "type": "checkout.session.completed",
        "data": {"object": {
            "id": %q,
            "payment_intent": "pi_100",
            "customer_email": %q,
            "amount_total": 4500,
            "currency": "usd",
            "metadata": {"package_id": %q}
        }}
    }`, sessionID, email, packageID)
}

func TestHandleDeliveryRejectsBadSignature(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	fulfiller := newFulfiller(t, st)

	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	header := payments.Sign("whsec_wrong", time.Now(), body)

	err := fulfiller.HandleDelivery(context.Background(), body, header)
	if !errors.Is(err, payments.ErrInvalidSignature) {
		t.Fatalf("expected signature error, got %v", err)
	}
}

func TestHandleDeliveryRecordsPurchase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	fulfiller := newFulfiller(t, st)

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{
		AccessCode:       "WH-OK",
		RequiresPurchase: true,
	})

	body, header := signedBody(completedEvent(pkg.ID, "cs_wh_1", "Buyer@Example.COM"))
	if err := fulfiller.HandleDelivery(ctx, body, header); err != nil {
		t.Fatalf("HandleDelivery failed: %v", err)
	}

	purchase, err := st.GetPurchaseBySession(ctx, "cs_wh_1")
	if err != nil {
		t.Fatalf("GetPurchaseBySession failed: %v", err)
	}
	if purchase == nil {
		t.Fatal("purchase not recorded")
	}
	if purchase.Email != "buyer@example.com" {
		t.Fatalf("email should be lowercased, got %q", purchase.Email)
	}
	if purchase.Status != store.PurchaseSucceeded {
		t.Fatalf("unexpected status %q", purchase.Status)
	}

	granted, err := st.HasSucceededPurchase(ctx, pkg.ID, "buyer@example.com")
	if err != nil {
		t.Fatalf("HasSucceededPurchase failed: %v", err)
	}
	if !granted {
		t.Fatal("recorded purchase should grant access")
	}
}

func TestHandleDeliveryIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	fulfiller := newFulfiller(t, st)

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{
		AccessCode:       "WH-DUP",
		RequiresPurchase: true,
	})

	body, header := signedBody(completedEvent(pkg.ID, "cs_wh_dup", "buyer@example.com"))
	for i := 0; i < 3; i++ {
		if err := fulfiller.HandleDelivery(ctx, body, header); err != nil {
			t.Fatalf("delivery %d failed: %v", i, err)
		}
	}

	purchases, err := st.ListPurchases(ctx)
	if err != nil {
		t.Fatalf("ListPurchases failed: %v", err)
	}
	if len(purchases) != 1 {
		t.Fatalf("expected one purchase after duplicate deliveries, got %d", len(purchases))
	}
}

func TestHandleDeliveryUpdatesRefundByIntent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	fulfiller := newFulfiller(t, st)

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{
		AccessCode:       "WH-REF",
		RequiresPurchase: true,
	})
	if _, err := st.InsertPurchase(ctx, store.NewPurchaseParams{
		PackageID:         pkg.ID,
		Email:             "buyer@example.com",
		CheckoutSessionID: "cs_wh_ref",
		PaymentIntentID:   "pi_ref_1",
		AmountCents:       4500,
		Currency:          "usd",
	}); err != nil {
		t.Fatalf("InsertPurchase failed: %v", err)
	}

	body, header := signedBody(`{
        "id": "evt_ref",
        "type": "charge.refunded",
        "data": {"object": {"id": "ch_1", "payment_intent": "pi_ref_1"}}
    }`)
	if err := fulfiller.HandleDelivery(ctx, body, header); err != nil {
		t.Fatalf("HandleDelivery failed: %v", err)
	}

	purchase, err := st.GetPurchaseBySession(ctx, "cs_wh_ref")
	if err != nil {
		t.Fatalf("GetPurchaseBySession failed: %v", err)
	}
	if purchase.Status != store.PurchaseRefunded {
		t.Fatalf("expected refunded status, got %q", purchase.Status)
	}

	granted, err := st.HasSucceededPurchase(ctx, pkg.ID, "buyer@example.com")
	if err != nil {
		t.Fatalf("HasSucceededPurchase failed: %v", err)
	}
	if granted {
		t.Fatal("refunded purchase should no longer grant access")
	}
}

func TestHandleDeliverySwallowsInternalProblems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()
	fulfiller := newFulfiller(t, st)

	// Malformed JSON with a valid signature must be acknowledged.
	body, header := signedBody(`{not json`)
	if err := fulfiller.HandleDelivery(ctx, body, header); err != nil {
		t.Fatalf("malformed body should be swallowed, got %v", err)
	}

	// A session missing its package metadata is logged and dropped.
	body, header = signedBody(`{
        "id": "evt_x",
        "type": "checkout.session.completed",
        "data": {"object": {"id": "cs_no_meta"}}
    }`)
	if err := fulfiller.HandleDelivery(ctx, body, header); err != nil {
		t.Fatalf("missing metadata should be swallowed, got %v", err)
	}

	// Unknown event types are acknowledged and ignored.
	body, header = signedBody(`{"id":"evt_y","type":"invoice.created","data":{"object":{}}}`)
	if err := fulfiller.HandleDelivery(ctx, body, header); err != nil {
		t.Fatalf("unknown event should be swallowed, got %v", err)
	}
}
