package tracking

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/TrackDesk/internal/broker/messages"
	"github.com/BearBump/TrackDesk/internal/httpx"
	"github.com/BearBump/TrackDesk/internal/integrations/dhl"
	"github.com/BearBump/TrackDesk/internal/models"
)

type Repository interface {
	UpsertResult(ctx context.Context, rec *models.TrackingRecord) (*models.TrackingRecord, error)
	UpdateBinID(ctx context.Context, trackingNumber, binID string) error
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.TrackingRecord, error)
	GetMultiple(ctx context.Context, trackingNumbers []string) ([]*models.TrackingRecord, error)
	GetByBatchID(ctx context.Context, batchID string) ([]*models.TrackingRecord, error)
	GetRecent(ctx context.Context, limit int) ([]*models.TrackingRecord, error)
	CountAll(ctx context.Context) (int64, error)
}

type UsageRepository interface {
	IncrementUsage(ctx context.Context, success bool) error
	GetOrCreateToday(ctx context.Context) (*models.APIUsage, error)
	RemainingRequests(ctx context.Context, dailyLimit int) (int, error)
}

type BytesCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	repo       Repository
	usage      UsageRepository
	cache      BytesCache
	carrier    dhl.Client
	dailyLimit int
	reuseTTL   time.Duration
}

func New(repo Repository, usage UsageRepository, cache BytesCache, carrier dhl.Client, dailyLimit int, reuseTTL time.Duration) *Service {
	if dailyLimit <= 0 {
		dailyLimit = 250
	}
	if reuseTTL <= 0 {
		reuseTTL = time.Hour
	}
	return &Service{repo: repo, usage: usage, cache: cache, carrier: carrier, dailyLimit: dailyLimit, reuseTTL: reuseTTL}
}

func (s *Service) DailyLimit() int { return s.dailyLimit }

// NormalizeTrackingNumber applies the canonical waybill form used everywhere:
// trimmed, upper-cased.
func NormalizeTrackingNumber(tn string) string {
	return strings.ToUpper(strings.TrimSpace(tn))
}

// TrackSingle checks one waybill, reusing a stored result when it is younger
// than the reuse window so repeat lookups do not burn DHL quota.
func (s *Service) TrackSingle(ctx context.Context, trackingNumber string, binID *string) (*models.TrackingRecord, error) {
	tn := NormalizeTrackingNumber(trackingNumber)
	if len(tn) < 5 {
		return nil, httpx.NewError(http.StatusBadRequest, "Invalid tracking number. Must be at least 5 characters.")
	}

	remaining, err := s.usage.RemainingRequests(ctx, s.dailyLimit)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		return nil, httpx.NewError(http.StatusTooManyRequests, "Daily API limit reached. Please try again tomorrow.")
	}

	if rec := s.freshRecord(ctx, tn); rec != nil {
		if binID != nil && (rec.BinID == nil || *rec.BinID != *binID) {
			if err := s.repo.UpdateBinID(ctx, tn, *binID); err != nil {
				return nil, err
			}
			rec.BinID = binID
			s.cacheRecord(ctx, rec)
		}
		return rec, nil
	}

	res, err := s.carrier.Track(ctx, tn, binID)
	if err != nil {
		return nil, err
	}
	rec, err := s.repo.UpsertResult(ctx, RecordFromResult(res))
	if err != nil {
		return nil, err
	}
	_ = s.usage.IncrementUsage(ctx, res.IsSuccessful)
	s.cacheRecord(ctx, rec)
	return rec, nil
}

// freshRecord returns the stored record for tn when it is inside the reuse
// window, preferring the redis copy. Cache misses and errors fall through to
// the database; the cache is best effort.
func (s *Service) freshRecord(ctx context.Context, tn string) *models.TrackingRecord {
	if s.cache != nil {
		if b, ok, err := s.cache.Get(ctx, currentKey(tn)); err == nil && ok {
			var rec models.TrackingRecord
			if json.Unmarshal(b, &rec) == nil && s.isFresh(&rec) {
				return &rec
			}
			// Stale or corrupt entry; evict so it is not parsed again.
			_ = s.cache.Delete(ctx, currentKey(tn))
		}
	}
	rec, err := s.repo.GetByTrackingNumber(ctx, tn)
	if err != nil || rec == nil || !s.isFresh(rec) {
		return nil
	}
	return rec
}

func (s *Service) isFresh(rec *models.TrackingRecord) bool {
	return rec.LastChecked != nil && time.Since(*rec.LastChecked) < s.reuseTTL
}

func (s *Service) cacheRecord(ctx context.Context, rec *models.TrackingRecord) {
	if s.cache == nil || rec == nil {
		return
	}
	if b, err := json.Marshal(rec); err == nil {
		_ = s.cache.Set(ctx, currentKey(rec.TrackingNumber), b, s.reuseTTL)
	}
}

// History returns the stored record for a waybill without touching DHL.
func (s *Service) History(ctx context.Context, trackingNumber string) (*models.TrackingRecord, error) {
	tn := NormalizeTrackingNumber(trackingNumber)
	rec, err := s.repo.GetByTrackingNumber(ctx, tn)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, httpx.NewError(http.StatusNotFound, "Tracking number not found in database")
	}
	return rec, nil
}

func (s *Service) HistoryByBatch(ctx context.Context, batchID string) ([]*models.TrackingRecord, error) {
	return s.repo.GetByBatchID(ctx, batchID)
}

// Recent returns the newest stored records for the history listing.
func (s *Service) Recent(ctx context.Context, limit int) ([]*models.TrackingRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	return s.repo.GetRecent(ctx, limit)
}

// ApplyCheckedUpdate stores a result that arrived over the broker (from the
// drop-directory watcher) and accounts for the API call it represents.
func (s *Service) ApplyCheckedUpdate(ctx context.Context, msg messages.TrackingChecked) error {
	tn := NormalizeTrackingNumber(msg.TrackingNumber)
	if tn == "" {
		return httpx.NewError(http.StatusBadRequest, "tracking_number is required")
	}
	checked := msg.CheckedAt
	if checked.IsZero() {
		checked = time.Now().UTC()
	}
	rec, err := s.repo.UpsertResult(ctx, &models.TrackingRecord{
		TrackingNumber: tn,
		BinID:          msg.BinID,
		StatusCode:     msg.StatusCode,
		Status:         msg.Status,
		Origin:         msg.Origin,
		Destination:    msg.Destination,
		DetailsJSON:    msg.DetailsJSON,
		BatchID:        msg.BatchID,
		IsSuccessful:   msg.IsSuccessful,
		ErrorMessage:   msg.ErrorMessage,
		LastChecked:    &checked,
	})
	if err != nil {
		return err
	}
	_ = s.usage.IncrementUsage(ctx, msg.IsSuccessful)
	s.cacheRecord(ctx, rec)
	return nil
}

type UsageStats struct {
	Date              string  `json:"date"`
	RequestsUsed      int     `json:"requests_used"`
	RequestsRemaining int     `json:"requests_remaining"`
	DailyLimit        int     `json:"daily_limit"`
	PercentageUsed    float64 `json:"percentage_used"`
}

func (s *Service) Usage(ctx context.Context) (*UsageStats, error) {
	u, err := s.usage.GetOrCreateToday(ctx)
	if err != nil {
		return nil, err
	}
	remaining := s.dailyLimit - u.RequestCount
	if remaining < 0 {
		remaining = 0
	}
	pct := float64(u.RequestCount) / float64(s.dailyLimit) * 100
	return &UsageStats{
		Date:              u.Date,
		RequestsUsed:      u.RequestCount,
		RequestsRemaining: remaining,
		DailyLimit:        s.dailyLimit,
		PercentageUsed:    math.Round(pct*100) / 100,
	}, nil
}

type Stats struct {
	TotalTrackingRecords    int64 `json:"total_tracking_records"`
	APIRequestsToday        int   `json:"api_requests_today"`
	APIRequestsRemaining    int   `json:"api_requests_remaining"`
	SuccessfulRequestsToday int   `json:"successful_requests_today"`
	FailedRequestsToday     int   `json:"failed_requests_today"`
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	total, err := s.repo.CountAll(ctx)
	if err != nil {
		return nil, err
	}
	u, err := s.usage.GetOrCreateToday(ctx)
	if err != nil {
		return nil, err
	}
	remaining := s.dailyLimit - u.RequestCount
	if remaining < 0 {
		remaining = 0
	}
	return &Stats{
		TotalTrackingRecords:    total,
		APIRequestsToday:        u.RequestCount,
		APIRequestsRemaining:    remaining,
		SuccessfulRequestsToday: u.SuccessfulRequests,
		FailedRequestsToday:     u.FailedRequests,
	}, nil
}

// RecordFromResult maps an upstream check onto the stored record shape.
func RecordFromResult(res dhl.Result) *models.TrackingRecord {
	checked := res.CheckedAt
	if checked.IsZero() {
		checked = time.Now().UTC()
	}
	return &models.TrackingRecord{
		TrackingNumber: res.TrackingNumber,
		BinID:          res.BinID,
		StatusCode:     res.StatusCode,
		Status:         res.Status,
		Origin:         res.Origin,
		Destination:    res.Destination,
		DetailsJSON:    res.DetailsJSON,
		IsSuccessful:   res.IsSuccessful,
		ErrorMessage:   res.ErrorMessage,
		LastChecked:    &checked,
	}
}

func currentKey(tn string) string {
	return "tracking:" + tn + ":current"
}
