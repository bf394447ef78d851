package console

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestDetailList_Fallbacks(t *testing.T) {
	out := DetailList(TrackingResult{TrackingNumber: "5859187246"})
	require.Contains(t, out, "5859187246")
	require.Equal(t, 7, strings.Count(out, "N/A")) // every optional field absent
	require.NotContains(t, out, "null")
	require.NotContains(t, out, "<nil>")
}

func TestDetailList_YesNo(t *testing.T) {
	out := DetailList(TrackingResult{TrackingNumber: "A1", IsSuccessful: boolPtr(true)})
	require.Contains(t, out, "Yes")

	out = DetailList(TrackingResult{TrackingNumber: "A1", IsSuccessful: boolPtr(false)})
	require.Contains(t, out, "No")
}

func TestTableRow_SpecScenario(t *testing.T) {
	row := TableRow(TrackingResult{TrackingNumber: "T1", Status: strPtr("Delivered")})
	require.Contains(t, row, "T1")
	require.Contains(t, row, "Delivered")
	require.Contains(t, row, "N/A") // missing origin/destination
}

func TestTableRow_EscapesValues(t *testing.T) {
	row := TableRow(TrackingResult{TrackingNumber: `<script>`})
	require.NotContains(t, row, "<script>")
	require.Contains(t, row, "&lt;script&gt;")
}

func TestResultsTable_Empty(t *testing.T) {
	require.Empty(t, ResultsTable(nil))
}

func TestUploadSummary_ProcessingTime(t *testing.T) {
	out := UploadSummary(BatchUploadResponse{
		BatchID:        "B1",
		TotalRequested: 2,
		Successful:     2,
		ProcessingTime: 1.234,
	})
	require.Contains(t, out, "B1")
	require.Contains(t, out, "1.23s")
}

func TestExportList_Empty(t *testing.T) {
	out := ExportList(nil, func(string) string { return "" })
	require.Contains(t, out, "No export files found")
	require.NotContains(t, out, "<li>")
}

func TestExportList_Rows(t *testing.T) {
	files := []ExportFile{{Filename: "tracking_report_x.csv", FileSize: "1.2 KB", RecordCount: 3}}
	out := ExportList(files, func(fn string) string { return "/dl/" + fn })
	require.Contains(t, out, "tracking_report_x.csv")
	require.Contains(t, out, "1.2 KB")
	require.Contains(t, out, `href="/dl/tracking_report_x.csv"`)
}

func TestStatsCards_ZeroDefaults(t *testing.T) {
	out := StatsCards(StatsSnapshot{})
	require.Equal(t, 5, strings.Count(out, `<div class="card-value">0</div>`))
}

func TestUsageCards(t *testing.T) {
	out := UsageCards(UsageSnapshot{Date: "2026-01-15", RequestsUsed: 50, DailyLimit: 250, PercentageUsed: 20})
	require.Contains(t, out, "2026-01-15")
	require.Contains(t, out, "20.00%")

	require.Contains(t, UsageCards(UsageSnapshot{}), "N/A")
}

func TestRendering_Idempotent(t *testing.T) {
	checked := time.Date(2026, 1, 15, 14, 30, 0, 0, time.UTC)
	res := TrackingResult{TrackingNumber: "A1", Status: strPtr("In transit"), LastChecked: &checked}
	require.Equal(t, DetailList(res), DetailList(res))
	require.Equal(t, TableRow(res), TableRow(res))
	require.Equal(t, StatsCards(StatsSnapshot{}), StatsCards(StatsSnapshot{}))
}
