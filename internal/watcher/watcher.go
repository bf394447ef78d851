// Package watcher scans a drop directory for waybill files, runs each one
// through the DHL client and publishes the outcomes to Kafka. Handled files
// move to processed/, unreadable ones to failed/.
package watcher

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/TrackDesk/internal/broker/messages"
	"github.com/BearBump/TrackDesk/internal/files"
	"github.com/BearBump/TrackDesk/internal/integrations/dhl"
)

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Watcher struct {
	dropDir  string
	carrier  dhl.Client
	producer Producer
	rl       RateLimiter
	topic    string

	scanInterval time.Duration
	ratePerMin   int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastScanUnixNano    atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalFiles          atomic.Int64
	totalWaybills       atomic.Int64
	totalErrors         atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(dropDir string, carrier dhl.Client, producer Producer, rl RateLimiter, topic string) *Watcher {
	return &Watcher{
		dropDir:           dropDir,
		carrier:           carrier,
		producer:          producer,
		rl:                rl,
		topic:             topic,
		scanInterval:      30 * time.Second,
		ratePerMin:        60,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (w *Watcher) WithSettings(scanInterval time.Duration, ratePerMin int64) *Watcher {
	if scanInterval > 0 {
		w.scanInterval = scanInterval
	}
	if ratePerMin > 0 {
		w.ratePerMin = ratePerMin
	}
	return w
}

// Trigger forces an immediate scan (best-effort, non-blocking).
func (w *Watcher) Trigger() {
	w.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastScanAt    *time.Time `json:"lastScanAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalFiles    int64      `json:"totalFiles"`
	TotalWaybills int64      `json:"totalWaybills"`
	TotalErrors   int64      `json:"totalErrors"`
	LastError     string     `json:"lastError,omitempty"`
}

func (w *Watcher) Stats() Stats {
	st := Stats{
		StartedAt:     time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalFiles:    w.totalFiles.Load(),
		TotalWaybills: w.totalWaybills.Load(),
		TotalErrors:   w.totalErrors.Load(),
	}
	if n := w.lastScanUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastScanAt = &t
	}
	if n := w.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}

func (w *Watcher) Run(ctx context.Context) error {
	t := time.NewTicker(w.scanInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.scanOnce(ctx)
		case <-w.triggerCh:
			w.scanOnce(ctx)
		}
	}
}

func (w *Watcher) scanOnce(ctx context.Context) {
	w.lastScanUnixNano.Store(time.Now().UTC().UnixNano())

	entries, err := os.ReadDir(w.dropDir)
	if err != nil {
		w.noteError(errors.Wrap(err, "read drop dir"))
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := w.processFile(ctx, e.Name()); err != nil {
			w.noteError(err)
			w.moveTo(e.Name(), "failed")
			continue
		}
		w.moveTo(e.Name(), "processed")
		w.totalFiles.Add(1)
		if ctx.Err() != nil {
			return
		}
	}
}

func (w *Watcher) processFile(ctx context.Context, name string) error {
	path := filepath.Join(w.dropDir, name)
	fi, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(err, "stat drop file")
	}
	if err := files.ValidateName(name, fi.Size(), 0); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "open drop file")
	}
	defer f.Close()

	inputs, err := files.Parse(name, f)
	if err != nil {
		return err
	}
	slog.Info("drop file picked up", "file", name, "waybills", len(inputs))

	for _, in := range inputs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.waitForRateSlot(ctx)
		res, err := w.carrier.Track(ctx, in.TrackingNumber, in.BinID)
		if err != nil {
			w.noteError(errors.Wrapf(err, "track %s", in.TrackingNumber))
			continue
		}
		if err := w.publish(ctx, res); err != nil {
			return err
		}
		w.totalWaybills.Add(1)
	}
	return nil
}

func (w *Watcher) publish(ctx context.Context, res dhl.Result) error {
	msg := messages.TrackingChecked{
		TrackingNumber: res.TrackingNumber,
		BinID:          res.BinID,
		CheckedAt:      res.CheckedAt,
		StatusCode:     res.StatusCode,
		Status:         res.Status,
		Origin:         res.Origin,
		Destination:    res.Destination,
		DetailsJSON:    res.DetailsJSON,
		IsSuccessful:   res.IsSuccessful,
		ErrorMessage:   res.ErrorMessage,
	}
	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal tracking checked")
	}
	return w.producer.Publish(ctx, w.topic, []byte(res.TrackingNumber), b)
}

func (w *Watcher) waitForRateSlot(ctx context.Context) {
	if w.rl == nil || w.ratePerMin <= 0 {
		return
	}
	for {
		key := "rl:dhl:" + time.Now().UTC().Format("200601021504")
		allowed, n, err := w.rl.Allow(ctx, key, w.ratePerMin, 70*time.Second)
		if err != nil || allowed {
			return
		}
		slog.Warn("rate limit exceeded", "count", n)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (w *Watcher) moveTo(name, sub string) {
	dst := filepath.Join(w.dropDir, sub)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		w.noteError(errors.Wrap(err, "create archive dir"))
		return
	}
	target := filepath.Join(dst, name)
	if _, err := os.Stat(target); err == nil {
		// Same name dropped twice; keep both.
		target = filepath.Join(dst, time.Now().UTC().Format("20060102150405_")+name)
	}
	if err := os.Rename(filepath.Join(w.dropDir, name), target); err != nil {
		w.noteError(errors.Wrap(err, "archive drop file"))
	}
}

func (w *Watcher) noteError(err error) {
	w.totalErrors.Add(1)
	w.lastErrorMu.Lock()
	w.lastError = err.Error()
	w.lastErrorMu.Unlock()
	slog.Error("watcher", "error", err.Error())
}
