package pgtracking

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) CreateExport(ctx context.Context, rec *models.ExportRecord) (*models.ExportRecord, error) {
	now := time.Now().UTC()
	nums, err := json.Marshal(rec.TrackingNumbers)
	if err != nil {
		return nil, errors.Wrap(err, "marshal tracking numbers")
	}

	row := s.db.QueryRow(ctx, `
INSERT INTO export_history (export_type, file_path, tracking_numbers, record_count, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id, created_at
`, rec.ExportType, rec.FilePath, nums, rec.RecordCount, now)

	out := *rec
	if err := row.Scan(&out.ID, &out.CreatedAt); err != nil {
		return nil, errors.Wrap(err, "insert export record")
	}
	return &out, nil
}

func (s *Storage) GetRecentExports(ctx context.Context, limit int) ([]*models.ExportRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, export_type, file_path, tracking_numbers, record_count, created_at
FROM export_history
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select recent exports")
	}
	defer rows.Close()
	return collectExports(rows)
}

func (s *Storage) GetExportsByType(ctx context.Context, exportType string, limit int) ([]*models.ExportRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, export_type, file_path, tracking_numbers, record_count, created_at
FROM export_history
WHERE export_type = $1
ORDER BY created_at DESC
LIMIT $2
`, exportType, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select exports by type")
	}
	defer rows.Close()
	return collectExports(rows)
}

func collectExports(rows pgx.Rows) ([]*models.ExportRecord, error) {
	var out []*models.ExportRecord
	for rows.Next() {
		var e models.ExportRecord
		var nums []byte
		if err := rows.Scan(&e.ID, &e.ExportType, &e.FilePath, &nums, &e.RecordCount, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan export record")
		}
		if len(nums) > 0 {
			_ = json.Unmarshal(nums, &e.TrackingNumbers)
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
