// Package batch runs bulk DHL checks: it reuses recent results where it can,
// spreads the remaining lookups over sub-batches under the per-minute rate
// limit, and retries transient upstream failures with a growing delay.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BearBump/TrackDesk/internal/integrations/dhl"
	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/services/tracking"
)

type Repository interface {
	UpsertResult(ctx context.Context, rec *models.TrackingRecord) (*models.TrackingRecord, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*models.TrackingRecord, error)
}

type UsageRepository interface {
	IncrementUsage(ctx context.Context, success bool) error
	RemainingRequests(ctx context.Context, dailyLimit int) (int, error)
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Processor struct {
	repo    Repository
	usage   UsageRepository
	carrier dhl.Client
	rl      RateLimiter

	dailyLimit  int
	reuseTTL    time.Duration
	batchSize   int
	concurrency int
	batchDelay  time.Duration
	maxRetries  int
	retryDelay  time.Duration
	ratePerMin  int64

	// test seam, sleeps between sub-batches and retries
	sleep func(ctx context.Context, d time.Duration)
}

func New(repo Repository, usage UsageRepository, carrier dhl.Client, rl RateLimiter, dailyLimit int) *Processor {
	if dailyLimit <= 0 {
		dailyLimit = 250
	}
	return &Processor{
		repo:        repo,
		usage:       usage,
		carrier:     carrier,
		rl:          rl,
		dailyLimit:  dailyLimit,
		reuseTTL:    time.Hour,
		batchSize:   10,
		concurrency: 5,
		batchDelay:  2 * time.Second,
		maxRetries:  3,
		retryDelay:  5 * time.Second,
		ratePerMin:  60,
		sleep:       sleepCtx,
	}
}

func (p *Processor) WithSettings(batchSize int, batchDelay time.Duration, maxRetries int, retryDelay time.Duration, ratePerMin int64) *Processor {
	if batchSize > 0 {
		p.batchSize = batchSize
	}
	if batchDelay > 0 {
		p.batchDelay = batchDelay
	}
	if maxRetries > 0 {
		p.maxRetries = maxRetries
	}
	if retryDelay > 0 {
		p.retryDelay = retryDelay
	}
	if ratePerMin > 0 {
		p.ratePerMin = ratePerMin
	}
	return p
}

func (p *Processor) WithReuseWindow(ttl time.Duration) *Processor {
	if ttl > 0 {
		p.reuseTTL = ttl
	}
	return p
}

type Result struct {
	BatchID        string                   `json:"batch_id"`
	TotalRequested int                      `json:"total_requested"`
	Successful     int                      `json:"successful"`
	Failed         int                      `json:"failed"`
	Results        []*models.TrackingRecord `json:"results"`
	ProcessingTime float64                  `json:"processing_time"`
}

// NewBatchID builds ids like batch_20260115_143052_a1b2c3d4.
func NewBatchID(now time.Time) string {
	return fmt.Sprintf("batch_%s_%s", now.Format("20060102_150405"), uuid.NewString()[:8])
}

// Process checks every input in order. Results younger than the reuse window
// are served from storage without touching the daily quota; everything past
// the remaining quota is reported as failed without calling DHL.
func (p *Processor) Process(ctx context.Context, inputs []models.TrackingInput) (*Result, error) {
	start := time.Now().UTC()
	batchID := NewBatchID(start)

	items := dedupe(inputs)
	out := &Result{BatchID: batchID, TotalRequested: len(items)}

	remaining, err := p.usage.RemainingRequests(ctx, p.dailyLimit)
	if err != nil {
		return nil, err
	}

	var due []models.TrackingInput
	for _, in := range items {
		if rec := p.reusable(ctx, in.TrackingNumber); rec != nil {
			out.Results = append(out.Results, rec)
			continue
		}
		due = append(due, in)
	}

	if len(due) > remaining {
		for _, in := range due[remaining:] {
			out.Results = append(out.Results, p.storeFailure(ctx, in, batchID,
				"Daily API limit reached. Please try again tomorrow."))
		}
		due = due[:remaining]
	}

	slog.Info("batch started",
		"batch_id", batchID,
		"requested", out.TotalRequested,
		"reused", out.TotalRequested-len(due),
		"due", len(due))

	for i := 0; i < len(due); i += p.batchSize {
		if i > 0 {
			p.sleep(ctx, p.batchDelay)
		}
		end := i + p.batchSize
		if end > len(due) {
			end = len(due)
		}
		out.Results = append(out.Results, p.runSubBatch(ctx, due[i:end], batchID)...)
	}

	for _, rec := range out.Results {
		if rec.IsSuccessful {
			out.Successful++
		} else {
			out.Failed++
		}
	}
	out.ProcessingTime = time.Since(start).Seconds()

	slog.Info("batch finished",
		"batch_id", batchID,
		"successful", out.Successful,
		"failed", out.Failed,
		"seconds", out.ProcessingTime)
	return out, nil
}

func (p *Processor) runSubBatch(ctx context.Context, inputs []models.TrackingInput, batchID string) []*models.TrackingRecord {
	results := make([]*models.TrackingRecord, len(inputs))
	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup
	for i, in := range inputs {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, in models.TrackingInput) {
			defer func() {
				<-sem
				wg.Done()
			}()
			results[i] = p.processOne(ctx, in, batchID)
		}(i, in)
	}
	wg.Wait()
	return results
}

func (p *Processor) processOne(ctx context.Context, in models.TrackingInput, batchID string) *models.TrackingRecord {
	var lastErr error
	for attempt := 1; attempt <= p.maxRetries; attempt++ {
		if attempt > 1 {
			p.sleep(ctx, p.retryDelay+time.Duration(attempt-1)*5*time.Second)
		}
		p.waitForRateSlot(ctx)

		res, err := p.carrier.Track(ctx, in.TrackingNumber, in.BinID)
		if err != nil {
			lastErr = err
			slog.Warn("batch lookup failed",
				"batch_id", batchID,
				"tracking_number", in.TrackingNumber,
				"attempt", attempt,
				"error", err.Error())
			continue
		}
		rec := tracking.RecordFromResult(res)
		rec.BatchID = &batchID
		stored, err := p.repo.UpsertResult(ctx, rec)
		if err != nil {
			lastErr = err
			continue
		}
		_ = p.usage.IncrementUsage(ctx, res.IsSuccessful)
		return stored
	}

	msg := fmt.Sprintf("Failed after %d retry attempts", p.maxRetries)
	if lastErr != nil {
		msg = fmt.Sprintf("Failed after %d retry attempts: %s", p.maxRetries, lastErr.Error())
	}
	_ = p.usage.IncrementUsage(ctx, false)
	return p.storeFailure(ctx, in, batchID, msg)
}

// waitForRateSlot blocks until the per-minute limit admits one more DHL call.
func (p *Processor) waitForRateSlot(ctx context.Context) {
	if p.rl == nil || p.ratePerMin <= 0 {
		return
	}
	for {
		key := "rl:dhl:" + time.Now().UTC().Format("200601021504")
		allowed, n, err := p.rl.Allow(ctx, key, p.ratePerMin, 70*time.Second)
		if err != nil || allowed {
			return
		}
		slog.Warn("rate limit exceeded", "count", n)
		p.sleep(ctx, time.Second)
		if ctx.Err() != nil {
			return
		}
	}
}

func (p *Processor) reusable(ctx context.Context, tn string) *models.TrackingRecord {
	rec, err := p.repo.GetByTrackingNumber(ctx, tn)
	if err != nil || rec == nil || rec.LastChecked == nil {
		return nil
	}
	if time.Since(*rec.LastChecked) >= p.reuseTTL {
		return nil
	}
	return rec
}

func (p *Processor) storeFailure(ctx context.Context, in models.TrackingInput, batchID, errMsg string) *models.TrackingRecord {
	now := time.Now().UTC()
	rec := &models.TrackingRecord{
		TrackingNumber: in.TrackingNumber,
		BinID:          in.BinID,
		BatchID:        &batchID,
		IsSuccessful:   false,
		ErrorMessage:   &errMsg,
		LastChecked:    &now,
	}
	stored, err := p.repo.UpsertResult(ctx, rec)
	if err != nil {
		slog.Error("store batch failure", "tracking_number", in.TrackingNumber, "error", err.Error())
		return rec
	}
	return stored
}

func dedupe(inputs []models.TrackingInput) []models.TrackingInput {
	seen := make(map[string]struct{}, len(inputs))
	out := make([]models.TrackingInput, 0, len(inputs))
	for _, in := range inputs {
		tn := tracking.NormalizeTrackingNumber(in.TrackingNumber)
		if tn == "" {
			continue
		}
		if _, ok := seen[tn]; ok {
			continue
		}
		seen[tn] = struct{}{}
		in.TrackingNumber = tn
		out = append(out, in)
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
