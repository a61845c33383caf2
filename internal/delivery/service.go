package delivery

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"aeromedia/internal/gate"
	"aeromedia/internal/logging"
	"aeromedia/internal/metrics"
	"aeromedia/internal/objectstore"
	"aeromedia/internal/services"
	"aeromedia/internal/store"
)

// Grant is a time-limited download authorization for one media item.
type Grant struct {
	ItemID    string `json:"item_id"`
	URL       string `json:"url"`
	FileName  string `json:"file_name"`
	FileType  string `json:"file_type"`
	FileSize  int64  `json:"file_size"`
	ExpiresIn int64  `json:"expires_in"`
}

// View describes a media item for the storefront viewer. Denied viewers see
// the watermarked preview and never the original URL.
type View struct {
	ItemID     string `json:"item_id"`
	FileName   string `json:"file_name"`
	FileType   string `json:"file_type"`
	Allowed    bool   `json:"allowed"`
	URL        string `json:"url,omitempty"`
	PreviewURL string `json:"preview_url,omitempty"`
	DenyReason string `json:"deny_reason,omitempty"`
}

// BulkResult carries the grants for a bulk download request.
type BulkResult struct {
	PackageID string  `json:"package_id"`
	Grants    []Grant `json:"grants"`
}

// Service mediates between the gate, the catalog, and object storage.
type Service struct {
	store     *store.Store
	gate      *gate.Gate
	signer    objectstore.Signer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	signedTTL time.Duration
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithSignedTTL overrides the advertised lifetime of issued URLs.
func WithSignedTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.signedTTL = ttl
		}
	}
}

// New creates a delivery service.
func New(st *store.Store, g *gate.Gate, signer objectstore.Signer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Service{
		store:     st,
		gate:      g,
		signer:    signer,
		logger:    logger.With(logging.String(logging.FieldComponent, "delivery")),
		signedTTL: time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ViewItem returns the viewer descriptor for a media item. Access denial is
// not an error here; the storefront shows the preview instead.
func (s *Service) ViewItem(ctx context.Context, itemID, accessCode, email string) (*View, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	decision, err := s.gate.CanDownload(ctx, item.PackageID, accessCode, email)
	if err != nil {
		return nil, err
	}

	view := &View{
		ItemID:   item.ID,
		FileName: item.FileName,
		FileType: string(item.FileType),
		Allowed:  decision.Allowed,
	}
	if !decision.Allowed {
		view.DenyReason = decision.DenyReason
		if item.PreviewPath != "" {
			view.PreviewURL = s.signer.PublicURL(item.Bucket, item.PreviewPath)
		}
		return view, nil
	}

	view.URL = s.itemURL(ctx, item)
	return view, nil
}

// Download authorizes one item and returns a signed grant. Denials map to a
// forbidden error carrying the gate's reason.
func (s *Service) Download(ctx context.Context, itemID, accessCode, email string) (*Grant, error) {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	decision, err := s.gate.CanDownload(ctx, item.PackageID, accessCode, email)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.metrics.DownloadDenied(decision.DenyReason)
		s.track(ctx, item, "download_denied", decision.DenyReason)
		return nil, services.Wrap(services.ErrForbidden, "delivery", "download", decision.DenyReason, nil)
	}

	s.track(ctx, item, "download_started", "")
	grant := s.grantFor(ctx, item)
	s.recordDownload(ctx, item)
	return &grant, nil
}

// BulkDownload authorizes the package once and returns grants for the
// requested items. Item ids outside the package are silently skipped. A
// non-empty packageID must match the access code's package; mismatches are
// rejected before any counter or tracking side effect.
func (s *Service) BulkDownload(ctx context.Context, packageID, accessCode, email string, itemIDs []string) (*BulkResult, error) {
	pkg, decision, err := s.authorizePackage(ctx, accessCode, email)
	if err != nil {
		return nil, err
	}
	if packageID != "" && pkg.ID != packageID {
		return nil, services.Wrap(services.ErrNotFound, "delivery", "bulk download", "package not found", nil)
	}
	if !decision.Allowed {
		s.metrics.DownloadDenied(decision.DenyReason)
		return nil, services.Wrap(services.ErrForbidden, "delivery", "bulk download", decision.DenyReason, nil)
	}

	var items []*store.MediaItem
	if len(itemIDs) == 0 {
		items, err = s.store.ItemsByPackage(ctx, pkg.ID)
	} else {
		items, err = s.store.ItemsByIDs(ctx, pkg.ID, itemIDs)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "delivery", "bulk download", "load package items", err)
	}

	result := &BulkResult{PackageID: pkg.ID, Grants: make([]Grant, 0, len(items))}
	for _, item := range items {
		result.Grants = append(result.Grants, s.grantFor(ctx, item))
		s.recordDownload(ctx, item)
	}
	return result, nil
}

// PackageContents lists a package's items for an authorized viewer, previews
// included. Denied viewers still get the listing with preview URLs only.
func (s *Service) PackageContents(ctx context.Context, accessCode, email string) (*store.MediaPackage, []View, error) {
	pkg, decision, err := s.authorizePackage(ctx, accessCode, email)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.ItemsByPackage(ctx, pkg.ID)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrTransient, "delivery", "list package", "load package items", err)
	}

	views := make([]View, 0, len(items))
	for _, item := range items {
		view := View{
			ItemID:   item.ID,
			FileName: item.FileName,
			FileType: string(item.FileType),
			Allowed:  decision.Allowed,
		}
		if decision.Allowed {
			view.URL = s.itemURL(ctx, item)
		} else {
			view.DenyReason = decision.DenyReason
			if item.PreviewPath != "" {
				view.PreviewURL = s.signer.PublicURL(item.Bucket, item.PreviewPath)
			}
		}
		views = append(views, view)
	}
	return pkg, views, nil
}

// Track records a storefront telemetry event. The error return lets the
// caller report that nothing was recorded; it must never become an HTTP
// failure.
func (s *Service) Track(ctx context.Context, itemID, eventType string) error {
	item, err := s.loadItem(ctx, itemID)
	if err != nil {
		s.logger.Debug("tracking lookup failed", logging.String("item_id", itemID), logging.Error(err))
		return err
	}
	remoteIP, userAgent := services.ClientInfoFromContext(ctx)
	event := store.DownloadEvent{
		MediaItemID: item.ID,
		PackageID:   item.PackageID,
		EventType:   eventType,
		RemoteIP:    remoteIP,
		UserAgent:   userAgent,
	}
	if err := s.store.RecordDownloadEvent(ctx, event); err != nil {
		s.logger.Debug("tracking event dropped",
			logging.String("item_id", item.ID),
			logging.String("event", eventType),
			logging.Error(err))
		return services.Wrap(services.ErrTransient, "delivery", "track", "record event", err)
	}
	return nil
}

func (s *Service) authorizePackage(ctx context.Context, accessCode, email string) (*store.MediaPackage, gate.Decision, error) {
	pkg, err := s.store.GetPackageByAccessCode(ctx, accessCode)
	if err != nil {
		return nil, gate.Decision{}, services.Wrap(services.ErrTransient, "delivery", "authorize", "look up package", err)
	}
	if pkg == nil {
		return nil, gate.Decision{}, services.Wrap(services.ErrNotFound, "delivery", "authorize", "package not found", nil)
	}
	decision, err := s.gate.CanDownload(ctx, pkg.ID, accessCode, email)
	if err != nil {
		return nil, gate.Decision{}, err
	}
	return pkg, decision, nil
}

func (s *Service) loadItem(ctx context.Context, itemID string) (*store.MediaItem, error) {
	if itemID == "" {
		return nil, services.Wrap(services.ErrValidation, "delivery", "load item", "item id is required", nil)
	}
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "delivery", "load item", "look up media item", err)
	}
	if item == nil {
		return nil, services.Wrap(services.ErrNotFound, "delivery", "load item", "media item not found", nil)
	}
	return item, nil
}

func (s *Service) grantFor(ctx context.Context, item *store.MediaItem) Grant {
	return Grant{
		ItemID:    item.ID,
		URL:       s.itemURL(ctx, item),
		FileName:  item.FileName,
		FileType:  string(item.FileType),
		FileSize:  item.FileSize,
		ExpiresIn: int64(s.signedTTL.Seconds()),
	}
}

// itemURL signs a download URL, degrading to the public URL when signing
// fails so a storage hiccup does not block a paying customer.
func (s *Service) itemURL(ctx context.Context, item *store.MediaItem) string {
	signed, err := s.signer.SignURL(ctx, item.Bucket, item.ObjectPath)
	if err != nil {
		s.metrics.SignedURLFallback()
		s.logger.Warn("signed url failed, serving public url",
			logging.String("item_id", item.ID),
			logging.Error(err))
		return s.signer.PublicURL(item.Bucket, item.ObjectPath)
	}
	return signed
}

func (s *Service) recordDownload(ctx context.Context, item *store.MediaItem) {
	s.metrics.DownloadServed()
	if err := s.store.IncrementDownloadCount(ctx, item.ID); err != nil {
		s.logger.Warn("download counter update failed",
			logging.String("item_id", item.ID),
			logging.Error(err))
	}
	s.track(ctx, item, "download_completed", "")
}

func (s *Service) track(ctx context.Context, item *store.MediaItem, eventType, detail string) {
	remoteIP, userAgent := services.ClientInfoFromContext(ctx)
	event := store.DownloadEvent{
		MediaItemID: item.ID,
		PackageID:   item.PackageID,
		EventType:   eventType,
		RemoteIP:    remoteIP,
		UserAgent:   userAgent,
	}
	if detail != "" {
		if encoded, err := json.Marshal(map[string]string{"reason": detail}); err == nil {
			event.MetadataJSON = string(encoded)
		}
	}
	if err := s.store.RecordDownloadEvent(ctx, event); err != nil {
		s.logger.Debug("tracking event dropped",
			logging.String("item_id", item.ID),
			logging.String("event", eventType),
			logging.Error(err))
	}
}
