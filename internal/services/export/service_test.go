package export

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/BearBump/TrackDesk/internal/models"
)

type fakeHistory struct {
	created []*models.ExportRecord
}

func (f *fakeHistory) CreateExport(ctx context.Context, rec *models.ExportRecord) (*models.ExportRecord, error) {
	f.created = append(f.created, rec)
	return rec, nil
}
func (f *fakeHistory) GetRecentExports(ctx context.Context, limit int) ([]*models.ExportRecord, error) {
	if limit > 0 && len(f.created) > limit {
		return f.created[:limit], nil
	}
	return f.created, nil
}
func (f *fakeHistory) GetExportsByType(ctx context.Context, exportType string, limit int) ([]*models.ExportRecord, error) {
	var out []*models.ExportRecord
	for _, r := range f.created {
		if r.ExportType == exportType {
			out = append(out, r)
		}
	}
	return out, nil
}

func strPtr(s string) *string { return &s }

func sampleRecords() []*models.TrackingRecord {
	checked := time.Date(2026, 1, 15, 14, 30, 0, 0, time.UTC)
	return []*models.TrackingRecord{
		{
			TrackingNumber: "5859187246",
			BinID:          strPtr("BI01"),
			StatusCode:     strPtr("delivered"),
			Origin:         strPtr("Johannesburg, ZA"),
			Destination:    strPtr("Cape Town, ZA"),
			IsSuccessful:   true,
			LastChecked:    &checked,
		},
		{TrackingNumber: "1234567890"},
	}
}

func TestCreate_CSV(t *testing.T) {
	dir := t.TempDir()
	hist := &fakeHistory{}
	s := New(hist, dir)

	created, err := s.Create(context.Background(), sampleRecords(), FormatCSV, false)
	require.NoError(t, err)
	require.Equal(t, 2, created.RecordCount)
	require.Regexp(t, `^tracking_report_\d{8}_\d{6}_[0-9a-f]{8}\.csv$`, created.Filename)

	f, err := os.Open(created.FilePath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"Tracking #", "Bin ID", "Status Code", "Last Event Date"}, rows[0])
	require.Equal(t, []string{"5859187246", "BI01", "delivered", "2026-01-15 14:30"}, rows[1])
	require.Equal(t, []string{"1234567890", "N/A", "N/A", "N/A"}, rows[2])

	require.Len(t, hist.created, 1)
	require.Equal(t, FormatCSV, hist.created[0].ExportType)
	require.Equal(t, []string{"5859187246", "1234567890"}, hist.created[0].TrackingNumbers)
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	hist := &fakeHistory{}
	s := New(hist, dir)

	csvFile, err := s.Create(context.Background(), sampleRecords(), FormatCSV, false)
	require.NoError(t, err)
	xlsxFile, err := s.Create(context.Background(), sampleRecords(), FormatXLSX, false)
	require.NoError(t, err)

	entries, err := s.History(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, csvFile.Filename, entries[0].Filename)
	require.Equal(t, 2, entries[0].RecordCount)
	require.Equal(t, FormatCSV, entries[0].ExportType)
	require.NotEmpty(t, entries[0].FileSize)

	byType, err := s.History(context.Background(), FormatXLSX, 10)
	require.NoError(t, err)
	require.Len(t, byType, 1)
	require.Equal(t, xlsxFile.Filename, byType[0].Filename)

	// Rows whose file was swept disappear from the listing.
	require.NoError(t, os.Remove(csvFile.FilePath))
	entries, err = s.History(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, xlsxFile.Filename, entries[0].Filename)
}

func TestCreate_CSVWithDetails(t *testing.T) {
	dir := t.TempDir()
	s := New(&fakeHistory{}, dir)

	created, err := s.Create(context.Background(), sampleRecords(), FormatCSV, true)
	require.NoError(t, err)

	f, err := os.Open(created.FilePath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Equal(t, []string{"Tracking #", "Bin ID", "Status Code", "Origin", "Destination", "Last Event Date"}, rows[0])
	require.Equal(t, "Johannesburg, ZA", rows[1][3])
	require.Equal(t, "N/A", rows[2][3])
}

func TestCreate_XLSX(t *testing.T) {
	dir := t.TempDir()
	s := New(&fakeHistory{}, dir)

	created, err := s.Create(context.Background(), sampleRecords(), FormatXLSX, false)
	require.NoError(t, err)

	f, err := excelize.OpenFile(created.FilePath)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Tracking Report")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "5859187246", rows[1][0])
	require.Equal(t, "N/A", rows[2][1])
}

func TestCreate_RejectsUnknownFormat(t *testing.T) {
	s := New(&fakeHistory{}, t.TempDir())
	_, err := s.Create(context.Background(), sampleRecords(), "pdf", false)
	require.Error(t, err)
}

func TestRecentFilesAndLatest(t *testing.T) {
	dir := t.TempDir()
	s := New(&fakeHistory{}, dir)

	files, err := s.RecentFiles(10)
	require.NoError(t, err)
	require.Empty(t, files)

	_, err = s.Create(context.Background(), sampleRecords(), FormatCSV, false)
	require.NoError(t, err)
	xlsx, err := s.Create(context.Background(), sampleRecords(), FormatXLSX, false)
	require.NoError(t, err)

	files, err = s.RecentFiles(10)
	require.NoError(t, err)
	require.Len(t, files, 2)
	require.NotEmpty(t, files[0].FileSize)

	latest, err := s.LatestFile(FormatXLSX)
	require.NoError(t, err)
	require.Equal(t, xlsx.Filename, latest)

	latest, err = s.LatestFile(FormatCSV)
	require.NoError(t, err)
	require.NotEmpty(t, latest)
}

func TestCleanupOld(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "tracking_report_20250101_000000_deadbeef.csv")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	old := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	s := New(&fakeHistory{}, dir)
	_, err := s.Create(context.Background(), sampleRecords(), FormatCSV, false)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	require.True(t, os.IsNotExist(err))
}

func TestResolveDownload(t *testing.T) {
	dir := t.TempDir()
	s := New(&fakeHistory{}, dir)
	created, err := s.Create(context.Background(), sampleRecords(), FormatCSV, false)
	require.NoError(t, err)

	path, err := s.ResolveDownload(created.Filename)
	require.NoError(t, err)
	require.Equal(t, created.FilePath, path)

	_, err = s.ResolveDownload("../secrets.txt")
	require.Error(t, err)
	_, err = s.ResolveDownload("nope.csv")
	require.Error(t, err)
}

func TestHumanSize(t *testing.T) {
	require.Equal(t, "512 B", HumanSize(512))
	require.Equal(t, "1.5 KB", HumanSize(1536))
	require.Equal(t, "2.0 MB", HumanSize(2*1024*1024))
}
