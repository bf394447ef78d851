package pgtracking

import (
	"context"
	"time"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/pkg/errors"
)

func usageDate(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// GetOrCreateToday returns today's usage row, creating a zeroed one if needed.
func (s *Storage) GetOrCreateToday(ctx context.Context) (*models.APIUsage, error) {
	now := time.Now().UTC()
	row := s.db.QueryRow(ctx, `
INSERT INTO api_usage (date, request_count, successful_requests, failed_requests, created_at, updated_at)
VALUES ($1, 0, 0, 0, $2, $2)
ON CONFLICT (date) DO UPDATE SET updated_at = api_usage.updated_at
RETURNING date, request_count, successful_requests, failed_requests, updated_at
`, usageDate(now), now)

	var u models.APIUsage
	if err := row.Scan(&u.Date, &u.RequestCount, &u.SuccessfulRequests, &u.FailedRequests, &u.UpdatedAt); err != nil {
		return nil, errors.Wrap(err, "get or create usage")
	}
	return &u, nil
}

func (s *Storage) IncrementUsage(ctx context.Context, success bool) error {
	now := time.Now().UTC()
	okInc, failInc := 0, 1
	if success {
		okInc, failInc = 1, 0
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO api_usage (date, request_count, successful_requests, failed_requests, created_at, updated_at)
VALUES ($1, 1, $2, $3, $4, $4)
ON CONFLICT (date) DO UPDATE SET
  request_count = api_usage.request_count + 1,
  successful_requests = api_usage.successful_requests + $2,
  failed_requests = api_usage.failed_requests + $3,
  updated_at = $4
`, usageDate(now), okInc, failInc, now)
	return errors.Wrap(err, "increment usage")
}

func (s *Storage) RemainingRequests(ctx context.Context, dailyLimit int) (int, error) {
	u, err := s.GetOrCreateToday(ctx)
	if err != nil {
		return 0, err
	}
	remaining := dailyLimit - u.RequestCount
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
