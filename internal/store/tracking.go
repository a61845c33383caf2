package store

import (
	"context"
	"fmt"
	"time"
)

// RecordDownloadEvent appends a telemetry record. The table is write-only for
// the delivery flow; operators query it out of band.
func (s *Store) RecordDownloadEvent(ctx context.Context, event DownloadEvent) error {
	if event.EventType == "" {
		return fmt.Errorf("event type is required")
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO download_events (
            media_item_id, package_id, event_type, remote_ip, user_agent, metadata_json, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullableString(event.MediaItemID),
		nullableString(event.PackageID),
		event.EventType,
		nullableString(event.RemoteIP),
		nullableString(event.UserAgent),
		nullableString(event.MetadataJSON),
		formatTime(time.Now().UTC()),
	)
	if err != nil {
		return fmt.Errorf("record download event: %w", err)
	}
	return nil
}
