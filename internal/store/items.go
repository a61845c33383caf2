package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewItemParams holds the caller-supplied fields for item creation.
type NewItemParams struct {
	PackageID    string
	Bucket       string
	ObjectPath   string
	PreviewPath  string
	FileType     FileType
	FileName     string
	FileSize     int64
	Width        *int64
	Height       *int64
	DurationSecs *float64
}

// AddItem inserts a media item under an existing package.
func (s *Store) AddItem(ctx context.Context, params NewItemParams) (*MediaItem, error) {
	if params.PackageID == "" {
		return nil, errors.New("package id is required")
	}
	if params.ObjectPath == "" {
		return nil, errors.New("object path is required")
	}
	if !params.FileType.Valid() {
		return nil, fmt.Errorf("invalid file type %q", params.FileType)
	}

	id := uuid.NewString()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO media_items (
            id, package_id, bucket, object_path, preview_path, file_type,
            file_name, file_size, width, height, duration_seconds,
            download_count, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		id,
		params.PackageID,
		params.Bucket,
		params.ObjectPath,
		nullableString(params.PreviewPath),
		string(params.FileType),
		params.FileName,
		params.FileSize,
		nullableInt64(params.Width),
		nullableInt64(params.Height),
		nullableFloat64(params.DurationSecs),
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}

	return s.GetItem(ctx, id)
}

// GetItem fetches a media item by identifier.
func (s *Store) GetItem(ctx context.Context, id string) (*MediaItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM media_items WHERE id = ?`, id)
	item, err := scanMediaItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ItemsByPackage returns all items belonging to a package ordered by creation time.
func (s *Store) ItemsByPackage(ctx context.Context, packageID string) ([]*MediaItem, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM media_items WHERE package_id = ? ORDER BY created_at`,
		packageID,
	)
	if err != nil {
		return nil, fmt.Errorf("items by package: %w", err)
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ItemsByIDs returns the subset of the given item ids that belong to the
// package. Unknown ids and ids from other packages are silently skipped.
func (s *Store) ItemsByIDs(ctx context.Context, packageID string, ids []string) ([]*MediaItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, packageID)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+itemColumns+` FROM media_items WHERE package_id = ? AND id IN (`+placeholders+`) ORDER BY created_at`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("items by ids: %w", err)
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		item, err := scanMediaItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// IncrementDownloadCount bumps the download counter of an item.
func (s *Store) IncrementDownloadCount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE media_items SET download_count = download_count + 1 WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("increment download count: %w", err)
	}
	return nil
}

// RemoveItem deletes a media item by identifier.
func (s *Store) RemoveItem(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const itemColumns = "id, package_id, bucket, object_path, preview_path, file_type, file_name, file_size, width, height, duration_seconds, download_count, created_at"

func scanMediaItem(scanner interface{ Scan(dest ...any) error }) (*MediaItem, error) {
	var (
		id            string
		packageID     string
		bucket        string
		objectPath    string
		previewPath   sql.NullString
		fileType      string
		fileName      string
		fileSize      int64
		width         sql.NullInt64
		height        sql.NullInt64
		duration      sql.NullFloat64
		downloadCount int64
		createdRaw    string
	)

	if err := scanner.Scan(
		&id,
		&packageID,
		&bucket,
		&objectPath,
		&previewPath,
		&fileType,
		&fileName,
		&fileSize,
		&width,
		&height,
		&duration,
		&downloadCount,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	item := &MediaItem{
		ID:            id,
		PackageID:     packageID,
		Bucket:        bucket,
		ObjectPath:    objectPath,
		PreviewPath:   previewPath.String,
		FileType:      FileType(fileType),
		FileName:      fileName,
		FileSize:      fileSize,
		DownloadCount: downloadCount,
	}
	if width.Valid {
		value := width.Int64
		item.Width = &value
	}
	if height.Valid {
		value := height.Int64
		item.Height = &value
	}
	if duration.Valid {
		value := duration.Float64
		item.DurationSecs = &value
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	return item, nil
}
