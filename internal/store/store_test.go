package store_test

import (
	"context"
	"testing"
	"time"

	"aeromedia/internal/store"
	"aeromedia/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	pkg, err := st.CreatePackage(ctx, store.NewPackageParams{
		AccessCode: "SUNRISE-42",
		Title:      "Sunrise Flight",
		FlightDate: "2026-07-04",
		Passengers: []string{"Avery Lee", "Sam Ortiz"},
		ExpiresAt:  time.Now().Add(72 * time.Hour),
	})
	if err != nil {
		t.Fatalf("CreatePackage failed: %v", err)
	}
	if pkg.ID == "" {
		t.Fatal("expected package ID to be assigned")
	}

	fetched, err := st.GetPackageByAccessCode(ctx, "SUNRISE-42")
	if err != nil {
		t.Fatalf("GetPackageByAccessCode failed: %v", err)
	}
	if fetched == nil || fetched.ID != pkg.ID {
		t.Fatalf("unexpected fetched package: %#v", fetched)
	}
	if len(fetched.Passengers) != 2 || fetched.Passengers[0] != "Avery Lee" {
		t.Fatalf("unexpected passengers: %v", fetched.Passengers)
	}
}

func TestAccessCodeLookupIsCaseSensitive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	testsupport.NewPackage(t, st, store.NewPackageParams{AccessCode: "Sunset-7"})

	found, err := st.GetPackageByAccessCode(context.Background(), "sunset-7")
	if err != nil {
		t.Fatalf("GetPackageByAccessCode failed: %v", err)
	}
	if found != nil {
		t.Fatal("expected lowercase lookup to miss")
	}
}

func TestCreatePackageRequiresFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := st.CreatePackage(ctx, store.NewPackageParams{Title: "No Code", ExpiresAt: time.Now()}); err == nil {
		t.Fatal("expected error when access code missing")
	}
	if _, err := st.CreatePackage(ctx, store.NewPackageParams{AccessCode: "X", ExpiresAt: time.Now()}); err == nil {
		t.Fatal("expected error when title missing")
	}
	if _, err := st.CreatePackage(ctx, store.NewPackageParams{AccessCode: "X", Title: "T"}); err == nil {
		t.Fatal("expected error when expiry missing")
	}
}

func TestItemOwnershipAndCascade(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{AccessCode: "CASCADE-1"})
	other := testsupport.NewPackage(t, st, store.NewPackageParams{AccessCode: "CASCADE-2"})

	item := testsupport.NewItem(t, st, pkg.ID, store.NewItemParams{
		ObjectPath: pkg.ID + "/beach.jpg",
		FileName:   "beach.jpg",
		FileSize:   2048,
	})
	foreign := testsupport.NewItem(t, st, other.ID, store.NewItemParams{
		ObjectPath: other.ID + "/dunes.jpg",
		FileName:   "dunes.jpg",
	})

	subset, err := st.ItemsByIDs(ctx, pkg.ID, []string{item.ID, foreign.ID, "missing"})
	if err != nil {
		t.Fatalf("ItemsByIDs failed: %v", err)
	}
	if len(subset) != 1 || subset[0].ID != item.ID {
		t.Fatalf("expected only owned item, got %#v", subset)
	}

	removed, err := st.RemovePackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("RemovePackage failed: %v", err)
	}
	if !removed {
		t.Fatal("expected package removed")
	}
	orphan, err := st.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if orphan != nil {
		t.Fatal("expected cascade delete of items")
	}
}

func TestAddItemRejectsUnknownFileType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{AccessCode: "TYPES-1"})
	_, err := st.AddItem(context.Background(), store.NewItemParams{
		PackageID:  pkg.ID,
		Bucket:     "aeromedia",
		ObjectPath: "x/y.gif",
		FileType:   "gif",
		FileName:   "y.gif",
	})
	if err == nil {
		t.Fatal("expected error for unknown file type")
	}
}

func TestInsertPurchaseIsIdempotentOnSessionID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{AccessCode: "IDEM-1"})
	params := store.NewPurchaseParams{
		PackageID:         pkg.ID,
		Email:             "buyer@example.com",
		CheckoutSessionID: "cs_test_123",
		PaymentIntentID:   "pi_test_123",
		AmountCents:       500,
		Currency:          "usd",
	}

	inserted, err := st.InsertPurchase(ctx, params)
	if err != nil {
		t.Fatalf("InsertPurchase failed: %v", err)
	}
	if !inserted {
		t.Fatal("expected first insert to succeed")
	}

	inserted, err = st.InsertPurchase(ctx, params)
	if err != nil {
		t.Fatalf("duplicate InsertPurchase failed: %v", err)
	}
	if inserted {
		t.Fatal("expected duplicate insert to be a no-op")
	}

	purchases, err := st.ListPurchases(ctx)
	if err != nil {
		t.Fatalf("ListPurchases failed: %v", err)
	}
	if len(purchases) != 1 {
		t.Fatalf("expected exactly one purchase, got %d", len(purchases))
	}
	if purchases[0].Status != store.PurchaseSucceeded {
		t.Fatalf("unexpected status: %s", purchases[0].Status)
	}
}

func TestUpdatePurchaseStatusByIntent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{AccessCode: "REFUND-1"})
	if _, err := st.InsertPurchase(ctx, store.NewPurchaseParams{
		PackageID:         pkg.ID,
		Email:             "buyer@example.com",
		CheckoutSessionID: "cs_refund_1",
		PaymentIntentID:   "pi_refund_1",
		AmountCents:       1500,
		Currency:          "usd",
	}); err != nil {
		t.Fatalf("InsertPurchase failed: %v", err)
	}

	updated, err := st.UpdatePurchaseStatusByIntent(ctx, "pi_refund_1", store.PurchaseRefunded)
	if err != nil {
		t.Fatalf("UpdatePurchaseStatusByIntent failed: %v", err)
	}
	if !updated {
		t.Fatal("expected purchase update")
	}

	updated, err = st.UpdatePurchaseStatusByIntent(ctx, "pi_unknown", store.PurchaseFailed)
	if err != nil {
		t.Fatalf("UpdatePurchaseStatusByIntent failed: %v", err)
	}
	if updated {
		t.Fatal("expected no match for unknown intent")
	}

	purchase, err := st.GetPurchaseBySession(ctx, "cs_refund_1")
	if err != nil {
		t.Fatalf("GetPurchaseBySession failed: %v", err)
	}
	if purchase == nil || purchase.Status != store.PurchaseRefunded {
		t.Fatalf("unexpected purchase: %#v", purchase)
	}
}

func TestHasSucceededPurchase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{AccessCode: "HAS-1"})
	if _, err := st.InsertPurchase(ctx, store.NewPurchaseParams{
		PackageID:         pkg.ID,
		Email:             "buyer@example.com",
		CheckoutSessionID: "cs_has_1",
		PaymentIntentID:   "pi_has_1",
		AmountCents:       500,
		Currency:          "usd",
	}); err != nil {
		t.Fatalf("InsertPurchase failed: %v", err)
	}

	has, err := st.HasSucceededPurchase(ctx, pkg.ID, "buyer@example.com")
	if err != nil {
		t.Fatalf("HasSucceededPurchase failed: %v", err)
	}
	if !has {
		t.Fatal("expected purchase match")
	}

	has, err = st.HasSucceededPurchase(ctx, pkg.ID, "")
	if err != nil {
		t.Fatalf("HasSucceededPurchase failed: %v", err)
	}
	if has {
		t.Fatal("expected empty email to never match")
	}

	if _, err := st.UpdatePurchaseStatusByIntent(ctx, "pi_has_1", store.PurchaseRefunded); err != nil {
		t.Fatalf("UpdatePurchaseStatusByIntent failed: %v", err)
	}
	has, err = st.HasSucceededPurchase(ctx, pkg.ID, "buyer@example.com")
	if err != nil {
		t.Fatalf("HasSucceededPurchase failed: %v", err)
	}
	if has {
		t.Fatal("expected refunded purchase to stop matching")
	}
}

func TestDownloadCounterAndTracking(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{AccessCode: "TRACK-1"})
	item := testsupport.NewItem(t, st, pkg.ID, store.NewItemParams{})

	for i := 0; i < 3; i++ {
		if err := st.IncrementDownloadCount(ctx, item.ID); err != nil {
			t.Fatalf("IncrementDownloadCount failed: %v", err)
		}
	}
	fetched, err := st.GetItem(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if fetched.DownloadCount != 3 {
		t.Fatalf("expected download count 3, got %d", fetched.DownloadCount)
	}

	if err := st.RecordDownloadEvent(ctx, store.DownloadEvent{
		MediaItemID: item.ID,
		PackageID:   pkg.ID,
		EventType:   "download_completed",
		RemoteIP:    "198.51.100.7",
		UserAgent:   "test-agent",
	}); err != nil {
		t.Fatalf("RecordDownloadEvent failed: %v", err)
	}
	if err := st.RecordDownloadEvent(ctx, store.DownloadEvent{PackageID: pkg.ID}); err == nil {
		t.Fatal("expected error for missing event type")
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Events != 1 {
		t.Fatalf("expected one tracked event, got %d", stats.Events)
	}
}

func TestExpirePackage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pkg := testsupport.NewPackage(t, st, store.NewPackageParams{
		AccessCode: "EXP-1",
		ExpiresAt:  time.Now().Add(24 * time.Hour),
	})
	if pkg.Expired(time.Now()) {
		t.Fatal("package should not start expired")
	}

	expired, err := st.ExpirePackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("ExpirePackage failed: %v", err)
	}
	if !expired {
		t.Fatal("expected expire to affect the package")
	}

	fetched, err := st.GetPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("GetPackage failed: %v", err)
	}
	if !fetched.Expired(time.Now().Add(time.Second)) {
		t.Fatal("expected package to report expired")
	}
}
