package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewPurchaseParams holds the fields recorded when a payment completes.
type NewPurchaseParams struct {
	PackageID         string
	Email             string
	CheckoutSessionID string
	PaymentIntentID   string
	AmountCents       int64
	Currency          string
	MetadataJSON      string
}

// InsertPurchase records a succeeded purchase. The insert is idempotent on the
// checkout session identifier: a second call with the same session id is a
// no-op and reports inserted=false.
func (s *Store) InsertPurchase(ctx context.Context, params NewPurchaseParams) (bool, error) {
	if params.PackageID == "" {
		return false, errors.New("package id is required")
	}
	if params.CheckoutSessionID == "" {
		return false, errors.New("checkout session id is required")
	}

	now := formatTime(time.Now().UTC())
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO purchases (
            id, package_id, email, checkout_session_id, payment_intent_id,
            amount_cents, currency, status, metadata_json, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(checkout_session_id) DO NOTHING`,
		uuid.NewString(),
		params.PackageID,
		params.Email,
		params.CheckoutSessionID,
		nullableString(params.PaymentIntentID),
		params.AmountCents,
		params.Currency,
		string(PurchaseSucceeded),
		nullableString(params.MetadataJSON),
		now,
		now,
	)
	if err != nil {
		return false, fmt.Errorf("insert purchase: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdatePurchaseStatusByIntent transitions a purchase matched by payment
// intent identifier. Returns false when no purchase matches.
func (s *Store) UpdatePurchaseStatusByIntent(ctx context.Context, paymentIntentID string, status PurchaseStatus) (bool, error) {
	if paymentIntentID == "" {
		return false, errors.New("payment intent id is required")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE purchases SET status = ?, updated_at = ? WHERE payment_intent_id = ?`,
		string(status),
		formatTime(time.Now().UTC()),
		paymentIntentID,
	)
	if err != nil {
		return false, fmt.Errorf("update purchase status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// HasSucceededPurchase reports whether a succeeded purchase exists for the
// package and email pair.
func (s *Store) HasSucceededPurchase(ctx context.Context, packageID, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM purchases WHERE package_id = ? AND email = ? AND status = ?`,
		packageID,
		email,
		string(PurchaseSucceeded),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("query succeeded purchase: %w", err)
	}
	return count > 0, nil
}

// GetPurchaseBySession fetches a purchase by checkout session identifier.
func (s *Store) GetPurchaseBySession(ctx context.Context, sessionID string) (*Purchase, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+purchaseColumns+` FROM purchases WHERE checkout_session_id = ?`,
		sessionID,
	)
	purchase, err := scanPurchase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase by session: %w", err)
	}
	return purchase, nil
}

// ListPurchases returns all purchases ordered by creation time, newest first.
func (s *Store) ListPurchases(ctx context.Context) ([]*Purchase, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+purchaseColumns+` FROM purchases ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var purchases []*Purchase
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		purchases = append(purchases, purchase)
	}
	return purchases, rows.Err()
}

const purchaseColumns = "id, package_id, email, checkout_session_id, payment_intent_id, amount_cents, currency, status, metadata_json, created_at, updated_at"

func scanPurchase(scanner interface{ Scan(dest ...any) error }) (*Purchase, error) {
	var (
		id           string
		packageID    string
		email        string
		sessionID    string
		intentID     sql.NullString
		amountCents  int64
		currency     string
		statusStr    string
		metadataJSON sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&packageID,
		&email,
		&sessionID,
		&intentID,
		&amountCents,
		&currency,
		&statusStr,
		&metadataJSON,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	purchase := &Purchase{
		ID:                id,
		PackageID:         packageID,
		Email:             email,
		CheckoutSessionID: sessionID,
		PaymentIntentID:   intentID.String,
		AmountCents:       amountCents,
		Currency:          currency,
		Status:            PurchaseStatus(statusStr),
		MetadataJSON:      metadataJSON.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		purchase.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		purchase.UpdatedAt = updated
	}
	return purchase, nil
}
