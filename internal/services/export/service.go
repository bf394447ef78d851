// Package export writes tracking reports to disk as CSV or XLSX and keeps a
// history of what was generated.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/BearBump/TrackDesk/internal/models"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	retention = 7 * 24 * time.Hour
)

type HistoryRepository interface {
	CreateExport(ctx context.Context, rec *models.ExportRecord) (*models.ExportRecord, error)
	GetRecentExports(ctx context.Context, limit int) ([]*models.ExportRecord, error)
	GetExportsByType(ctx context.Context, exportType string, limit int) ([]*models.ExportRecord, error)
}

type Service struct {
	history   HistoryRepository
	exportDir string

	now func() time.Time
}

func New(history HistoryRepository, exportDir string) *Service {
	return &Service{
		history:   history,
		exportDir: exportDir,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ValidFormat reports whether t names a supported report format.
func ValidFormat(t string) bool {
	return t == FormatCSV || t == FormatXLSX
}

type CreatedFile struct {
	Filename    string `json:"file_name"`
	FilePath    string `json:"file_path"`
	ExportType  string `json:"export_type"`
	RecordCount int    `json:"record_count"`
	FileSize    string `json:"file_size"`
	CreatedAt   string `json:"created_at"`
}

// Create writes a report for records and logs it in export history. Old
// report files are swept afterwards.
func (s *Service) Create(ctx context.Context, records []*models.TrackingRecord, format string, includeDetails bool) (*CreatedFile, error) {
	if !ValidFormat(format) {
		return nil, errors.Errorf("unsupported export format %q", format)
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create export dir")
	}

	now := s.now()
	filename := fmt.Sprintf("tracking_report_%s_%s.%s",
		now.Format("20060102_150405"), uuid.NewString()[:8], format)
	path := filepath.Join(s.exportDir, filename)

	var err error
	switch format {
	case FormatCSV:
		err = writeCSV(path, records, includeDetails)
	case FormatXLSX:
		err = writeXLSX(path, records, includeDetails)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "write %s report", format)
	}

	tns := make([]string, 0, len(records))
	for _, r := range records {
		tns = append(tns, r.TrackingNumber)
	}
	if _, err := s.history.CreateExport(ctx, &models.ExportRecord{
		ExportType:      format,
		FilePath:        path,
		TrackingNumbers: tns,
		RecordCount:     len(records),
	}); err != nil {
		return nil, errors.Wrap(err, "record export history")
	}

	size := "0 B"
	if fi, err := os.Stat(path); err == nil {
		size = HumanSize(fi.Size())
	}

	s.cleanupOld()

	slog.Info("export created", "filename", filename, "format", format, "records", len(records))
	return &CreatedFile{
		Filename:    filename,
		FilePath:    path,
		ExportType:  format,
		RecordCount: len(records),
		FileSize:    size,
		CreatedAt:   now.Format(time.RFC3339),
	}, nil
}

func header(includeDetails bool) []string {
	if includeDetails {
		return []string{"Tracking #", "Bin ID", "Status Code", "Origin", "Destination", "Last Event Date"}
	}
	return []string{"Tracking #", "Bin ID", "Status Code", "Last Event Date"}
}

func row(rec *models.TrackingRecord, includeDetails bool) []string {
	last := "N/A"
	if rec.LastChecked != nil {
		last = rec.LastChecked.Format("2006-01-02 15:04")
	}
	if includeDetails {
		return []string{
			rec.TrackingNumber,
			orNA(rec.BinID),
			orNA(rec.StatusCode),
			orNA(rec.Origin),
			orNA(rec.Destination),
			last,
		}
	}
	return []string{rec.TrackingNumber, orNA(rec.BinID), orNA(rec.StatusCode), last}
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

func writeCSV(path string, records []*models.TrackingRecord, includeDetails bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header(includeDetails)); err != nil {
		return err
	}
	for _, rec := range records {
		if err := w.Write(row(rec, includeDetails)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeXLSX(path string, records []*models.TrackingRecord, includeDetails bool) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Tracking Report"
	idx, err := f.NewSheet(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	hdr := header(includeDetails)
	cells := make([]interface{}, len(hdr))
	for i, h := range hdr {
		cells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &cells); err != nil {
		return err
	}
	for i, rec := range records {
		vals := row(rec, includeDetails)
		line := make([]interface{}, len(vals))
		for j, v := range vals {
			line[j] = v
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(sheet, cell, &line); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}

// cleanupOld removes report files past the retention window. Best effort.
func (s *Service) cleanupOld() {
	entries, err := os.ReadDir(s.exportDir)
	if err != nil {
		return
	}
	cutoff := s.now().Add(-retention)
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "tracking_report_") {
			continue
		}
		fi, err := e.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.exportDir, e.Name())); err != nil {
			slog.Warn("remove stale export", "file", e.Name(), "error", err.Error())
		}
	}
}

type FileInfo struct {
	Filename  string `json:"filename"`
	FileSize  string `json:"file_size"`
	CreatedAt string `json:"created_at"`
	Format    string `json:"format"`
}

// RecentFiles lists report files in the export directory, newest first.
func (s *Service) RecentFiles(limit int) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.exportDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read export dir")
	}

	var out []FileInfo
	mods := map[string]time.Time{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "tracking_report_") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		mods[e.Name()] = fi.ModTime()
		out = append(out, FileInfo{
			Filename:  e.Name(),
			FileSize:  HumanSize(fi.Size()),
			CreatedAt: fi.ModTime().UTC().Format(time.RFC3339),
			Format:    strings.TrimPrefix(filepath.Ext(e.Name()), "."),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return mods[out[i].Filename].After(mods[out[j].Filename])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LatestFile returns the newest report of the given format, or "" when none
// exists.
func (s *Service) LatestFile(format string) (string, error) {
	if !ValidFormat(format) {
		return "", errors.Errorf("unsupported export format %q", format)
	}
	files, err := s.RecentFiles(0)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.Format == format {
			return f.Filename, nil
		}
	}
	return "", nil
}

// ResolveDownload maps a requested filename onto the export directory,
// rejecting anything that escapes it.
func (s *Service) ResolveDownload(filename string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.Contains(filename, "..") {
		return "", errors.New("invalid filename")
	}
	path := filepath.Join(s.exportDir, filename)
	if _, err := os.Stat(path); err != nil {
		return "", errors.Wrap(err, "stat export file")
	}
	return path, nil
}

// HistoryEntry is one export history row resolved to its file on disk, in
// the shape the listing endpoints serve.
type HistoryEntry struct {
	Filename    string `json:"filename"`
	CreatedAt   string `json:"created_at"`
	FileSize    string `json:"file_size"`
	RecordCount int    `json:"record_count"`
	ExportType  string `json:"export_type"`
}

// History lists export history from storage, newest first. Rows whose file
// was already swept by retention are dropped so callers never see a dead
// download link.
func (s *Service) History(ctx context.Context, format string, limit int) ([]HistoryEntry, error) {
	var (
		recs []*models.ExportRecord
		err  error
	)
	if format != "" {
		recs, err = s.history.GetExportsByType(ctx, format, limit)
	} else {
		recs, err = s.history.GetRecentExports(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	var out []HistoryEntry
	for _, rec := range recs {
		fi, err := os.Stat(rec.FilePath)
		if err != nil {
			continue
		}
		out = append(out, HistoryEntry{
			Filename:    filepath.Base(rec.FilePath),
			CreatedAt:   rec.CreatedAt.UTC().Format(time.RFC3339),
			FileSize:    HumanSize(fi.Size()),
			RecordCount: rec.RecordCount,
			ExportType:  rec.ExportType,
		})
	}
	return out, nil
}

// HumanSize renders a byte count the way the export panels show it.
func HumanSize(n int64) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
