package console

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// Server renders the console page and its panel fragments. Every panel
// endpoint replaces its whole region; nothing is merged across calls.
type Server struct {
	client *Client
	busy   Busy
}

func NewServer(client *Client) *Server {
	return &Server{client: client}
}

// Busy reports in-flight panel calls, used by the health endpoint.
func (s *Server) Busy() *Busy { return &s.busy }

type tab struct {
	id    string
	label string
}

var tabs = []tab{
	{"track", "Track"},
	{"upload", "Upload"},
	{"batch", "Batch"},
	{"export", "Export"},
	{"files", "Files"},
	{"stats", "Stats"},
	{"usage", "Usage"},
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", s.page)
	r.Get("/panel/track", s.trackPanel)
	r.Post("/panel/upload", s.uploadPanel)
	r.Get("/panel/batch", s.batchPanel)
	r.Post("/panel/export", s.exportPanel)
	r.Post("/panel/export/batch", s.exportBatchPanel)
	r.Get("/panel/exports", s.exportsPanel)
	r.Get("/panel/stats", s.statsPanel)
	r.Get("/panel/usage", s.usagePanel)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","busy":%t}`, s.busy.Active())
	})

	return r
}

// page renders the tab chrome. Exactly one tab is active; unknown tab ids
// fall back to the first tab.
func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	active := r.URL.Query().Get("tab")
	found := false
	for _, t := range tabs {
		if t.id == active {
			found = true
			break
		}
	}
	if !found {
		active = tabs[0].id
	}

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="utf-8"><title>TrackDesk</title></head><body>`)
	b.WriteString(`<h1>TrackDesk</h1><nav class="tabs">`)
	for _, t := range tabs {
		class := "tab-button"
		if t.id == active {
			class += " active"
		}
		fmt.Fprintf(&b, `<a class="%s" href="/?tab=%s">%s</a>`, class, t.id, esc(t.label))
	}
	b.WriteString(`</nav>`)

	for _, t := range tabs {
		class := "tab-content"
		if t.id == active {
			class += " active"
		}
		fmt.Fprintf(&b, `<section id="tab-%s" class="%s">`, t.id, class)
		if t.id == active {
			b.WriteString(s.tabBody(t.id))
		}
		b.WriteString(`</section>`)
	}
	b.WriteString(`</body></html>`)
	writeHTML(w, b.String())
}

func (s *Server) tabBody(id string) string {
	switch id {
	case "track":
		return `<form action="/panel/track" method="get">` +
			`<input name="tracking_number" placeholder="Tracking number">` +
			`<button type="submit">Track</button></form>`
	case "upload":
		return `<form action="/panel/upload" method="post" enctype="multipart/form-data">` +
			`<input type="file" name="file">` +
			`<button type="submit">Upload</button></form>`
	case "batch":
		return `<form action="/panel/batch" method="get">` +
			`<input name="batch_id" placeholder="Batch ID">` +
			`<button type="submit">Load batch</button></form>`
	case "export":
		return `<form action="/panel/export" method="post">` +
			`<textarea name="tracking_numbers_text" placeholder="Tracking numbers"></textarea>` +
			`<select name="format"><option value="csv">CSV</option><option value="xlsx">XLSX</option></select>` +
			`<label><input type="checkbox" name="include_details" value="true"> Include details</label>` +
			`<button type="submit">Create export</button></form>` +
			`<form action="/panel/export/batch" method="post">` +
			`<input name="batch_id" placeholder="Batch ID">` +
			`<select name="format"><option value="csv">CSV</option><option value="xlsx">XLSX</option></select>` +
			`<button type="submit">Export batch</button></form>`
	case "files":
		return `<form action="/panel/exports" method="get">` +
			`<button type="submit">Refresh</button></form>`
	case "stats":
		return `<form action="/panel/stats" method="get">` +
			`<button type="submit">Load stats</button></form>`
	case "usage":
		return `<form action="/panel/usage" method="get">` +
			`<button type="submit">Load usage</button></form>`
	}
	return ""
}

func (s *Server) trackPanel(w http.ResponseWriter, r *http.Request) {
	view := NewView("single-result")
	tn := strings.TrimSpace(r.URL.Query().Get("tracking_number"))
	if tn == "" {
		writeHTML(w, view.RenderError("Please enter a tracking number"))
		return
	}

	release := s.busy.Acquire()
	defer release()

	res, err := s.client.TrackSingle(r.Context(), tn)
	if err != nil {
		writeHTML(w, view.RenderError(err.Error()))
		return
	}
	if res.TrackingNumber == "" {
		writeHTML(w, view.RenderNote("No tracking data returned"))
		return
	}
	writeHTML(w, view.Render(DetailList(*res)))
}

func (s *Server) uploadPanel(w http.ResponseWriter, r *http.Request) {
	view := NewView("upload-result")
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeHTML(w, view.RenderError("Please select a file"))
		return
	}
	defer f.Close()

	release := s.busy.Acquire()
	defer release()

	resp, err := s.client.Upload(r.Context(), hdr.Filename, f)
	if err != nil {
		writeHTML(w, view.RenderError(err.Error()))
		return
	}

	body := UploadSummary(*resp)
	if len(resp.Results) > 0 {
		body += ResultsTable(resp.Results)
	} else {
		body += BatchEmptyNote(resp.BatchID)
	}
	writeHTML(w, view.Render(body))
}

func (s *Server) batchPanel(w http.ResponseWriter, r *http.Request) {
	view := NewView("batch-result")
	batchID := strings.TrimSpace(r.URL.Query().Get("batch_id"))
	if batchID == "" {
		writeHTML(w, view.RenderError("Please enter a batch ID"))
		return
	}

	release := s.busy.Acquire()
	defer release()

	resp, err := s.client.BatchHistory(r.Context(), batchID)
	if err != nil {
		// History may be unavailable; point at exports instead of failing loud.
		slog.Warn("batch history fetch failed", "batch_id", batchID, "error", err.Error())
		writeHTML(w, view.Render(BatchUnavailableHint()))
		return
	}
	writeHTML(w, view.Render(ResultsTable(resp.Results)))
}

func (s *Server) exportPanel(w http.ResponseWriter, r *http.Request) {
	view := NewView("export-result")
	text := strings.TrimSpace(r.FormValue("tracking_numbers_text"))
	if text == "" {
		writeHTML(w, view.RenderError("Please enter tracking numbers"))
		return
	}
	format := r.FormValue("format")
	if format == "" {
		format = "csv"
	}
	includeDetails := r.FormValue("include_details") == "true"

	release := s.busy.Acquire()
	defer release()

	resp, err := s.client.CreateExport(r.Context(), text, format, includeDetails)
	if err != nil {
		writeHTML(w, view.RenderError(err.Error()))
		return
	}
	writeHTML(w, view.Render(ExportCard(*resp, s.client.DownloadURL(resp.FileName))))
}

func (s *Server) exportBatchPanel(w http.ResponseWriter, r *http.Request) {
	view := NewView("export-result")
	batchID := strings.TrimSpace(r.FormValue("batch_id"))
	if batchID == "" {
		writeHTML(w, view.RenderError("Please enter a batch ID"))
		return
	}
	format := r.FormValue("format")
	if format == "" {
		format = "csv"
	}

	release := s.busy.Acquire()
	defer release()

	resp, err := s.client.ExportBatch(r.Context(), batchID, format)
	if err != nil {
		writeHTML(w, view.RenderError(err.Error()))
		return
	}
	writeHTML(w, view.Render(ExportCard(*resp, s.client.DownloadURL(resp.FileName))))
}

func (s *Server) exportsPanel(w http.ResponseWriter, r *http.Request) {
	view := NewView("export-files")
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	release := s.busy.Acquire()
	defer release()

	files, err := s.client.RecentExports(r.Context(), limit)
	if err != nil {
		writeHTML(w, view.RenderError(err.Error()))
		return
	}
	writeHTML(w, view.Render(ExportList(files, s.client.DownloadURL)))
}

func (s *Server) statsPanel(w http.ResponseWriter, r *http.Request) {
	view := NewView("stats-result")

	release := s.busy.Acquire()
	defer release()

	st, err := s.client.Stats(r.Context())
	if err != nil {
		writeHTML(w, view.RenderError(err.Error()))
		return
	}
	writeHTML(w, view.Render(StatsCards(*st)))
}

func (s *Server) usagePanel(w http.ResponseWriter, r *http.Request) {
	view := NewView("usage-result")

	release := s.busy.Acquire()
	defer release()

	u, err := s.client.Usage(r.Context())
	if err != nil {
		writeHTML(w, view.RenderError(err.Error()))
		return
	}
	writeHTML(w, view.Render(UsageCards(*u)))
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(body))
}
