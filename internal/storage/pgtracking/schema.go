package pgtracking

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS tracking_records (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL UNIQUE,
  bin_id TEXT NULL,
  status_code TEXT NULL,
  status TEXT NULL,
  origin TEXT NULL,
  destination TEXT NULL,
  tracking_details JSONB NULL,
  batch_id TEXT NULL,
  is_successful BOOLEAN NOT NULL DEFAULT FALSE,
  error_message TEXT NULL,
  last_checked TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_records_batch_id ON tracking_records(batch_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tracking_records_created_at ON tracking_records(created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS api_usage (
  id BIGSERIAL PRIMARY KEY,
  date TEXT NOT NULL UNIQUE,
  request_count INT NOT NULL DEFAULT 0,
  successful_requests INT NOT NULL DEFAULT 0,
  failed_requests INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS export_history (
  id BIGSERIAL PRIMARY KEY,
  export_type TEXT NOT NULL,
  file_path TEXT NOT NULL,
  tracking_numbers JSONB NULL,
  record_count INT NOT NULL DEFAULT 0,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_export_history_created_at ON export_history(created_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
