package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewPackageParams holds the caller-supplied fields for package creation.
type NewPackageParams struct {
	AccessCode       string
	Title            string
	FlightDate       string
	Passengers       []string
	PriceCents       *int64
	RequiresPurchase bool
	IsComp           bool
	ExpiresAt        time.Time
}

// CreatePackage inserts a new media package.
func (s *Store) CreatePackage(ctx context.Context, params NewPackageParams) (*MediaPackage, error) {
	if params.AccessCode == "" {
		return nil, errors.New("access code is required")
	}
	if params.Title == "" {
		return nil, errors.New("title is required")
	}
	if params.ExpiresAt.IsZero() {
		return nil, errors.New("expiry timestamp is required")
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	var passengersJSON any
	if len(params.Passengers) > 0 {
		encoded, err := json.Marshal(params.Passengers)
		if err != nil {
			return nil, fmt.Errorf("marshal passengers: %w", err)
		}
		passengersJSON = string(encoded)
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO media_packages (
            id, access_code, title, flight_date, passengers_json, price_cents,
            requires_purchase, is_comp, expires_at, price_ref, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		params.AccessCode,
		params.Title,
		nullableString(params.FlightDate),
		passengersJSON,
		nullableInt64(params.PriceCents),
		boolToInt(params.RequiresPurchase),
		boolToInt(params.IsComp),
		formatTime(params.ExpiresAt),
		nil,
		formatTime(now),
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert package: %w", err)
	}

	return s.GetPackage(ctx, id)
}

// GetPackage fetches a package by identifier.
func (s *Store) GetPackage(ctx context.Context, id string) (*MediaPackage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM media_packages WHERE id = ?`, id)
	pkg, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get package: %w", err)
	}
	return pkg, nil
}

// GetPackageByAccessCode fetches a package by its access code. The lookup is
// case-sensitive.
func (s *Store) GetPackageByAccessCode(ctx context.Context, code string) (*MediaPackage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+packageColumns+` FROM media_packages WHERE access_code = ?`, code)
	pkg, err := scanPackage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get package by access code: %w", err)
	}
	return pkg, nil
}

// ListPackages returns all packages ordered by creation time, newest first.
func (s *Store) ListPackages(ctx context.Context) ([]*MediaPackage, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+packageColumns+` FROM media_packages ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var packages []*MediaPackage
	for rows.Next() {
		pkg, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		packages = append(packages, pkg)
	}
	return packages, rows.Err()
}

// SetPackagePriceRef caches the payment provider price reference on a package.
func (s *Store) SetPackagePriceRef(ctx context.Context, id, priceRef string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE media_packages SET price_ref = ?, updated_at = ? WHERE id = ?`,
		nullableString(priceRef),
		formatTime(time.Now().UTC()),
		id,
	)
	if err != nil {
		return fmt.Errorf("set price ref: %w", err)
	}
	return nil
}

// ExpirePackage moves a package's expiry to the current time, revoking access.
func (s *Store) ExpirePackage(ctx context.Context, id string) (bool, error) {
	now := formatTime(time.Now().UTC())
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE media_packages SET expires_at = ?, updated_at = ? WHERE id = ?`,
		now,
		now,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("expire package: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// RemovePackage deletes a package; its items and purchases cascade.
func (s *Store) RemovePackage(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media_packages WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete package: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const packageColumns = "id, access_code, title, flight_date, passengers_json, price_cents, requires_purchase, is_comp, expires_at, price_ref, created_at, updated_at"

func scanPackage(scanner interface{ Scan(dest ...any) error }) (*MediaPackage, error) {
	var (
		id             string
		accessCode     string
		title          string
		flightDate     sql.NullString
		passengersJSON sql.NullString
		priceCents     sql.NullInt64
		requiresInt    int
		compInt        int
		expiresRaw     string
		priceRef       sql.NullString
		createdRaw     string
		updatedRaw     string
	)

	if err := scanner.Scan(
		&id,
		&accessCode,
		&title,
		&flightDate,
		&passengersJSON,
		&priceCents,
		&requiresInt,
		&compInt,
		&expiresRaw,
		&priceRef,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	pkg := &MediaPackage{
		ID:               id,
		AccessCode:       accessCode,
		Title:            title,
		FlightDate:       flightDate.String,
		RequiresPurchase: requiresInt != 0,
		IsComp:           compInt != 0,
		PriceRef:         priceRef.String,
	}
	if priceCents.Valid {
		value := priceCents.Int64
		pkg.PriceCents = &value
	}
	if passengersJSON.Valid && passengersJSON.String != "" {
		if err := json.Unmarshal([]byte(passengersJSON.String), &pkg.Passengers); err != nil {
			return nil, fmt.Errorf("decode passengers: %w", err)
		}
	}
	if expires, err := parseTimeString(expiresRaw); err == nil {
		pkg.ExpiresAt = expires
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		pkg.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		pkg.UpdatedAt = updated
	}
	return pkg, nil
}
