package console

import (
	"fmt"
	"html"
	"strings"
	"time"
)

// Formatting helpers are pure: same input, same fragment. Absent optional
// fields render as "N/A", booleans as Yes/No, timestamps in local time.

func orNA(s *string) string {
	if s == nil || *s == "" {
		return "N/A"
	}
	return *s
}

func yesNo(b *bool) string {
	if b == nil {
		return "N/A"
	}
	if *b {
		return "Yes"
	}
	return "No"
}

func localTime(t *time.Time) string {
	if t == nil {
		return "N/A"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func esc(s string) string { return html.EscapeString(s) }

// DetailList renders one result as a compact label/value list.
func DetailList(res TrackingResult) string {
	var b strings.Builder
	b.WriteString(`<dl class="tracking-detail">`)
	writeItem := func(label, value string) {
		fmt.Fprintf(&b, `<dt>%s</dt><dd>%s</dd>`, esc(label), esc(value))
	}
	writeItem("Tracking #", res.TrackingNumber)
	writeItem("Bin ID", orNA(res.BinID))
	writeItem("Status Code", orNA(res.StatusCode))
	writeItem("Status", orNA(res.Status))
	writeItem("Origin", orNA(res.Origin))
	writeItem("Destination", orNA(res.Destination))
	writeItem("Last Checked", localTime(res.LastChecked))
	writeItem("Successful", yesNo(res.IsSuccessful))
	if res.ErrorMessage != nil && *res.ErrorMessage != "" {
		writeItem("Error", *res.ErrorMessage)
	}
	b.WriteString(`</dl>`)
	return b.String()
}

// TableRow renders one result as a table row matching ResultsTable's header.
func TableRow(res TrackingResult) string {
	return fmt.Sprintf(
		`<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
		esc(res.TrackingNumber),
		esc(orNA(res.BinID)),
		esc(orNA(res.Status)),
		esc(orNA(res.Origin)),
		esc(orNA(res.Destination)),
		esc(localTime(res.LastChecked)),
		esc(yesNo(res.IsSuccessful)),
	)
}

// ResultsTable renders a full table, or "" for an empty result set.
func ResultsTable(results []TrackingResult) string {
	if len(results) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<table class="results-table"><thead><tr>` +
		`<th>Tracking #</th><th>Bin ID</th><th>Status</th><th>Origin</th>` +
		`<th>Destination</th><th>Last Checked</th><th>OK</th>` +
		`</tr></thead><tbody>`)
	for _, res := range results {
		b.WriteString(TableRow(res))
	}
	b.WriteString(`</tbody></table>`)
	return b.String()
}

// UploadSummary renders the batch header block shown above the results table.
func UploadSummary(resp BatchUploadResponse) string {
	return fmt.Sprintf(
		`<div class="batch-summary"><p>Batch <strong>%s</strong></p>`+
			`<p>Requested: %d · Successful: %d · Failed: %d</p>`+
			`<p>Processing time: %.2fs</p></div>`,
		esc(resp.BatchID), resp.TotalRequested, resp.Successful, resp.Failed, resp.ProcessingTime)
}

// BatchEmptyNote names the batch id so results can be pulled later.
func BatchEmptyNote(batchID string) string {
	return fmt.Sprintf(
		`<p class="note">Results are still being processed. Use batch id <strong>%s</strong> to retrieve them later.</p>`,
		esc(batchID))
}

// BatchUnavailableHint is shown when batch history cannot be fetched.
func BatchUnavailableHint() string {
	return `<p class="note">Batch history is unavailable. Use the export panel to retrieve batch results.</p>`
}

// ExportCard renders the created report with its download link.
func ExportCard(resp ExportResponse, downloadURL string) string {
	return fmt.Sprintf(
		`<div class="export-card"><p>Export ready: <strong>%s</strong> (%d records)</p>`+
			`<a class="download-btn" href="%s" target="_blank">Download</a></div>`,
		esc(resp.FileName), resp.RecordCount, esc(downloadURL))
}

// ExportList renders recent report files, or the no-files message.
func ExportList(files []ExportFile, downloadURL func(filename string) string) string {
	if len(files) == 0 {
		return `<p class="note">No export files found</p>`
	}
	var b strings.Builder
	b.WriteString(`<ul class="export-list">`)
	for _, f := range files {
		fmt.Fprintf(&b,
			`<li><span>%s</span> <span>%s</span> <span>%d records</span> `+
				`<a class="download-btn" href="%s" target="_blank">Download</a></li>`,
			esc(f.Filename), esc(f.FileSize), f.RecordCount, esc(downloadURL(f.Filename)))
	}
	b.WriteString(`</ul>`)
	return b.String()
}

// StatsCards renders the global counters grid. Missing fields show as 0.
func StatsCards(st StatsSnapshot) string {
	return cardGrid([]card{
		{"Total Records", fmt.Sprintf("%d", st.TotalTrackingRecords)},
		{"Requests Today", fmt.Sprintf("%d", st.APIRequestsToday)},
		{"Requests Remaining", fmt.Sprintf("%d", st.APIRequestsRemaining)},
		{"Successful Today", fmt.Sprintf("%d", st.SuccessfulRequestsToday)},
		{"Failed Today", fmt.Sprintf("%d", st.FailedRequestsToday)},
	})
}

// UsageCards renders the daily quota grid.
func UsageCards(u UsageSnapshot) string {
	date := u.Date
	if date == "" {
		date = "N/A"
	}
	return cardGrid([]card{
		{"Date", date},
		{"Requests Used", fmt.Sprintf("%d", u.RequestsUsed)},
		{"Requests Remaining", fmt.Sprintf("%d", u.RequestsRemaining)},
		{"Daily Limit", fmt.Sprintf("%d", u.DailyLimit)},
		{"Used", fmt.Sprintf("%.2f%%", u.PercentageUsed)},
	})
}

type card struct {
	label string
	value string
}

func cardGrid(cards []card) string {
	var b strings.Builder
	b.WriteString(`<div class="card-grid">`)
	for _, c := range cards {
		fmt.Fprintf(&b, `<div class="card"><div class="card-value">%s</div><div class="card-label">%s</div></div>`,
			esc(c.value), esc(c.label))
	}
	b.WriteString(`</div>`)
	return b.String()
}
