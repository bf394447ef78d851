package pgtracking

import (
	"context"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const trackingColumns = `
  id, tracking_number, bin_id,
  status_code, status, origin, destination,
  tracking_details, batch_id,
  is_successful, error_message, last_checked,
  created_at, updated_at`

// UpsertResult inserts or refreshes the record for a tracking number.
// bin_id is only overwritten when the incoming value is non-nil, so a later
// check without a bin does not drop an earlier association.
func (s *Storage) UpsertResult(ctx context.Context, rec *models.TrackingRecord) (*models.TrackingRecord, error) {
	now := time.Now().UTC()

	row := s.db.QueryRow(ctx, `
INSERT INTO tracking_records (
  tracking_number, bin_id, status_code, status, origin, destination,
  tracking_details, batch_id, is_successful, error_message, last_checked,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)
ON CONFLICT (tracking_number)
DO UPDATE SET
  bin_id = COALESCE(EXCLUDED.bin_id, tracking_records.bin_id),
  status_code = EXCLUDED.status_code,
  status = EXCLUDED.status,
  origin = EXCLUDED.origin,
  destination = EXCLUDED.destination,
  tracking_details = EXCLUDED.tracking_details,
  batch_id = COALESCE(EXCLUDED.batch_id, tracking_records.batch_id),
  is_successful = EXCLUDED.is_successful,
  error_message = EXCLUDED.error_message,
  last_checked = EXCLUDED.last_checked,
  updated_at = EXCLUDED.updated_at
RETURNING `+trackingColumns,
		rec.TrackingNumber, rec.BinID, rec.StatusCode, rec.Status, rec.Origin, rec.Destination,
		rec.DetailsJSON, rec.BatchID, rec.IsSuccessful, rec.ErrorMessage, rec.LastChecked, now)

	out, err := scanTracking(row)
	if err != nil {
		return nil, errors.Wrap(err, "upsert tracking record")
	}
	return out, nil
}

func (s *Storage) UpdateBinID(ctx context.Context, trackingNumber, binID string) error {
	_, err := s.db.Exec(ctx, `
UPDATE tracking_records SET bin_id = $2, updated_at = now() WHERE tracking_number = $1
`, trackingNumber, binID)
	return errors.Wrap(err, "update bin id")
}

// GetByTrackingNumber returns (nil, nil) when the number is unknown.
func (s *Storage) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.TrackingRecord, error) {
	row := s.db.QueryRow(ctx, `
SELECT `+trackingColumns+`
FROM tracking_records
WHERE tracking_number = $1
`, trackingNumber)

	rec, err := scanTracking(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select tracking record")
	}
	return rec, nil
}

func (s *Storage) GetMultiple(ctx context.Context, trackingNumbers []string) ([]*models.TrackingRecord, error) {
	if len(trackingNumbers) == 0 {
		return []*models.TrackingRecord{}, nil
	}
	rows, err := s.db.Query(ctx, `
SELECT `+trackingColumns+`
FROM tracking_records
WHERE tracking_number = ANY($1)
`, trackingNumbers)
	if err != nil {
		return nil, errors.Wrap(err, "select tracking records")
	}
	defer rows.Close()
	return collectTrackings(rows)
}

func (s *Storage) GetByBatchID(ctx context.Context, batchID string) ([]*models.TrackingRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+trackingColumns+`
FROM tracking_records
WHERE batch_id = $1
ORDER BY id
`, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "select batch records")
	}
	defer rows.Close()
	return collectTrackings(rows)
}

func (s *Storage) GetRecent(ctx context.Context, limit int) ([]*models.TrackingRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+trackingColumns+`
FROM tracking_records
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select recent records")
	}
	defer rows.Close()
	return collectTrackings(rows)
}

func (s *Storage) CountAll(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM tracking_records`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count tracking records")
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTracking(row rowScanner) (*models.TrackingRecord, error) {
	var t models.TrackingRecord
	if err := row.Scan(
		&t.ID, &t.TrackingNumber, &t.BinID,
		&t.StatusCode, &t.Status, &t.Origin, &t.Destination,
		&t.DetailsJSON, &t.BatchID,
		&t.IsSuccessful, &t.ErrorMessage, &t.LastChecked,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTrackings(rows pgx.Rows) ([]*models.TrackingRecord, error) {
	var out []*models.TrackingRecord
	for rows.Next() {
		t, err := scanTracking(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan tracking record")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
