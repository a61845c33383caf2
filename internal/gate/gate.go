package gate

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"aeromedia/internal/logging"
	"aeromedia/internal/services"
	"aeromedia/internal/store"
)

// Decision is the outcome of an access check. DenyReason is set only when
// Allowed is false.
type Decision struct {
	Allowed    bool
	DenyReason string
	Package    *store.MediaPackage
}

// Gate is the single authoritative access check for media downloads. Every
// delivery path consults it before a signed URL is issued.
type Gate struct {
	store  *store.Store
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// New constructs an access gate over the catalog store.
func New(st *store.Store, logger *slog.Logger, opts ...Option) *Gate {
	g := &Gate{
		store:  st,
		logger: logging.NewComponentLogger(logger, "gate"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CanDownload decides whether the holder of the access code may download the
// package's media.
//
// Expired packages are always denied. Packages that do not require purchase,
// or that are complimentary, are granted. Otherwise a succeeded purchase for
// the package and email pair is required; an anonymous requester (no email)
// can never match a purchase and is denied.
func (g *Gate) CanDownload(ctx context.Context, packageID, accessCode, email string) (Decision, error) {
	accessCode = strings.TrimSpace(accessCode)
	if accessCode == "" {
		return Decision{}, services.Wrap(services.ErrValidation, "gate", "check", "access code is required", nil)
	}

	pkg, err := g.store.GetPackageByAccessCode(ctx, accessCode)
	if err != nil {
		return Decision{}, services.Wrap(services.ErrTransient, "gate", "check", "load package", err)
	}
	if pkg == nil || (packageID != "" && pkg.ID != packageID) {
		return Decision{}, services.Wrap(services.ErrNotFound, "gate", "check", "package not found", nil)
	}

	decision := Decision{Package: pkg}

	if pkg.Expired(g.now()) {
		decision.DenyReason = "package expired"
		g.logDecision(decision, email)
		return decision, nil
	}

	if !pkg.RequiresPurchase || pkg.IsComp {
		decision.Allowed = true
		g.logDecision(decision, email)
		return decision, nil
	}

	email = normalizeEmail(email)
	if email == "" {
		// No email means no matchable purchase; anonymous holders of a
		// purchase-required code are denied.
		decision.DenyReason = "purchase required"
		g.logDecision(decision, email)
		return decision, nil
	}

	purchased, err := g.store.HasSucceededPurchase(ctx, pkg.ID, email)
	if err != nil {
		return Decision{}, services.Wrap(services.ErrTransient, "gate", "check", "load purchases", err)
	}
	if !purchased {
		decision.DenyReason = "purchase required"
		g.logDecision(decision, email)
		return decision, nil
	}

	decision.Allowed = true
	g.logDecision(decision, email)
	return decision, nil
}

func (g *Gate) logDecision(decision Decision, email string) {
	attrs := []logging.Attr{
		logging.String("package_id", decision.Package.ID),
		logging.Bool("allowed", decision.Allowed),
	}
	if email != "" {
		attrs = append(attrs, logging.String("email", email))
	}
	if decision.DenyReason != "" {
		attrs = append(attrs, logging.String("reason", decision.DenyReason))
	}
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	g.logger.Debug("access decision", args...)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
