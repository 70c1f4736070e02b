package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"unatienda/internal/domain"
)

// ----- Announcement history -----

func (s *Store) SaveAnnouncement(ctx context.Context, record *domain.AnnouncementRecord) error {
	if record == nil {
		return fmt.Errorf("sqlite: announcement nil")
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	const stmt = `
INSERT INTO announcements (id, type, text, status, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET status=excluded.status;
`
	if _, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		nullString(record.Type),
		record.Text,
		string(record.Status),
		record.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: save announcement: %w", err)
	}
	return nil
}

func (s *Store) ListAnnouncements(ctx context.Context, limit int) ([]*domain.AnnouncementRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
SELECT id, type, text, status, created_at
FROM announcements
ORDER BY created_at DESC
LIMIT ?;
`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list announcements: %w", err)
	}
	defer rows.Close()

	var out []*domain.AnnouncementRecord
	for rows.Next() {
		var (
			rec       domain.AnnouncementRecord
			kind      sql.NullString
			status    string
			createdAt sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &kind, &rec.Text, &status, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan announcement: %w", err)
		}
		rec.Type = kind.String
		rec.Status = domain.AnnouncementStatus(status)
		rec.CreatedAt = createdAt.Time
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list announcements rows: %w", err)
	}
	return out, nil
}

var _ domain.AnnouncementRepository = (*Store)(nil)
