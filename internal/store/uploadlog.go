package store

import (
	"context"
	"fmt"
	"time"
)

// UploadRecord describes one processed upload.
type UploadRecord struct {
	UploadID    string    `json:"upload_id"`
	Kind        string    `json:"kind"`
	Filename    string    `json:"filename"`
	Fingerprint string    `json:"fingerprint"`
	RowsRead    int       `json:"rows_read"`
	Status      string    `json:"status"`
	TopMessage  string    `json:"top_message"`
	ArchivePath string    `json:"archive_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordUpload appends an upload record. CreatedAt defaults to now.
func (s *Store) RecordUpload(ctx context.Context, rec *UploadRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx, `
		INSERT INTO benchmarks_uploadlog (
			upload_id, kind, filename, fingerprint, rows_read,
			status, top_message, archive_path, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UploadID, rec.Kind, rec.Filename, rec.Fingerprint, rec.RowsRead,
		rec.Status, rec.TopMessage, rec.ArchivePath, rec.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store: failed to record upload %s: %w", rec.UploadID, err)
	}
	return nil
}

// Uploads returns the most recent upload records, newest first.
func (s *Store) Uploads(ctx context.Context, limit int) ([]UploadRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.readDB.QueryContext(ctx, s.dialect.Rebind(`
		SELECT upload_id, kind, COALESCE(filename, ''), COALESCE(fingerprint, ''),
			COALESCE(rows_read, 0), COALESCE(status, ''), COALESCE(top_message, ''),
			COALESCE(archive_path, ''), created_at
		FROM benchmarks_uploadlog ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("store: failed to list uploads: %w", err)
	}
	defer rows.Close()

	var out []UploadRecord
	for rows.Next() {
		var r UploadRecord
		var createdAt string
		if err := rows.Scan(&r.UploadID, &r.Kind, &r.Filename, &r.Fingerprint, &r.RowsRead,
			&r.Status, &r.TopMessage, &r.ArchivePath, &createdAt); err != nil {
			return nil, fmt.Errorf("store: failed to scan upload: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}
