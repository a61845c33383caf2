package store

import (
	"strings"
	"time"
)

// FileType enumerates the media kinds sold through a package.
type FileType string

const (
	FileTypePhoto FileType = "photo"
	FileTypeVideo FileType = "video"
	FileTypeReel  FileType = "reel"
	FileTypeDrone FileType = "drone"
)

// Valid reports whether the file type is one of the known kinds.
func (t FileType) Valid() bool {
	switch t {
	case FileTypePhoto, FileTypeVideo, FileTypeReel, FileTypeDrone:
		return true
	}
	return false
}

// PurchaseStatus tracks the payment lifecycle of a purchase record.
type PurchaseStatus string

const (
	PurchaseSucceeded PurchaseStatus = "succeeded"
	PurchaseFailed    PurchaseStatus = "failed"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

// MediaPackage groups the media from one flight behind a shareable access code.
type MediaPackage struct {
	ID               string
	AccessCode       string
	Title            string
	FlightDate       string
	Passengers       []string
	PriceCents       *int64
	RequiresPurchase bool
	IsComp           bool
	ExpiresAt        time.Time
	PriceRef         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Expired reports whether the package is past its expiry timestamp.
func (p *MediaPackage) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Purchasable reports whether a checkout session may be created for the package.
func (p *MediaPackage) Purchasable(now time.Time) bool {
	return p.RequiresPurchase && !p.IsComp && !p.Expired(now)
}

// DisplayPassengers returns the passenger list as a single comma-joined string.
func (p *MediaPackage) DisplayPassengers() string {
	return strings.Join(p.Passengers, ", ")
}

// MediaItem is a single photo or video owned by exactly one package.
type MediaItem struct {
	ID            string
	PackageID     string
	Bucket        string
	ObjectPath    string
	PreviewPath   string
	FileType      FileType
	FileName      string
	FileSize      int64
	Width         *int64
	Height        *int64
	DurationSecs  *float64
	DownloadCount int64
	CreatedAt     time.Time
}

// Purchase records a confirmed payment for a package. The checkout session
// identifier is unique so duplicate webhook deliveries collapse to one row.
type Purchase struct {
	ID                string
	PackageID         string
	Email             string
	CheckoutSessionID string
	PaymentIntentID   string
	AmountCents       int64
	Currency          string
	Status            PurchaseStatus
	MetadataJSON      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// DownloadEvent is an append-only telemetry record. It is never read back by
// the delivery flow.
type DownloadEvent struct {
	ID           int64
	MediaItemID  string
	PackageID    string
	EventType    string
	RemoteIP     string
	UserAgent    string
	MetadataJSON string
	CreatedAt    time.Time
}

// Stats aggregates catalog counts for diagnostics.
type Stats struct {
	Packages  int
	Items     int
	Purchases int
	Events    int
}
