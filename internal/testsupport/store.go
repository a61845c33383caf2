package testsupport

import (
	"context"
	"testing"
	"time"

	"aeromedia/internal/config"
	"aeromedia/internal/store"
)

// MustOpenStore opens a catalog store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewPackage creates a media package for tests using the provided store.
func NewPackage(t testing.TB, st *store.Store, params store.NewPackageParams) *store.MediaPackage {
	t.Helper()

	if params.AccessCode == "" {
		params.AccessCode = "CODE-" + t.Name()
	}
	if params.Title == "" {
		params.Title = "Test Flight"
	}
	if params.ExpiresAt.IsZero() {
		params.ExpiresAt = time.Now().Add(30 * 24 * time.Hour)
	}

	pkg, err := st.CreatePackage(context.Background(), params)
	if err != nil {
		t.Fatalf("store.CreatePackage: %v", err)
	}
	return pkg
}

// NewItem creates a media item for tests under the given package.
func NewItem(t testing.TB, st *store.Store, packageID string, params store.NewItemParams) *store.MediaItem {
	t.Helper()

	params.PackageID = packageID
	if params.Bucket == "" {
		params.Bucket = "aeromedia"
	}
	if params.ObjectPath == "" {
		params.ObjectPath = packageID + "/" + t.Name() + ".jpg"
	}
	if params.FileType == "" {
		params.FileType = store.FileTypePhoto
	}
	if params.FileName == "" {
		params.FileName = "photo.jpg"
	}

	item, err := st.AddItem(context.Background(), params)
	if err != nil {
		t.Fatalf("store.AddItem: %v", err)
	}
	return item
}
