// Package trackhttp exposes the tracking REST API under /api/v1. Errors go
// out as JSON {"detail": "..."} with the matching status code.
package trackhttp

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/TrackDesk/internal/files"
	"github.com/BearBump/TrackDesk/internal/httpx"
	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/services/batch"
	"github.com/BearBump/TrackDesk/internal/services/export"
	"github.com/BearBump/TrackDesk/internal/services/tracking"
)

type TrackingService interface {
	TrackSingle(ctx context.Context, trackingNumber string, binID *string) (*models.TrackingRecord, error)
	History(ctx context.Context, trackingNumber string) (*models.TrackingRecord, error)
	HistoryByBatch(ctx context.Context, batchID string) ([]*models.TrackingRecord, error)
	Recent(ctx context.Context, limit int) ([]*models.TrackingRecord, error)
	Usage(ctx context.Context) (*tracking.UsageStats, error)
	Stats(ctx context.Context) (*tracking.Stats, error)
}

type BatchProcessor interface {
	Process(ctx context.Context, inputs []models.TrackingInput) (*batch.Result, error)
}

type Exporter interface {
	Create(ctx context.Context, records []*models.TrackingRecord, format string, includeDetails bool) (*export.CreatedFile, error)
	RecentFiles(limit int) ([]export.FileInfo, error)
	LatestFile(format string) (string, error)
	ResolveDownload(filename string) (string, error)
	History(ctx context.Context, format string, limit int) ([]export.HistoryEntry, error)
}

type Repository interface {
	GetMultiple(ctx context.Context, trackingNumbers []string) ([]*models.TrackingRecord, error)
}

type Handler struct {
	svc       TrackingService
	batches   BatchProcessor
	exports   Exporter
	repo      Repository
	maxUpload int64
}

func New(svc TrackingService, batches BatchProcessor, exports Exporter, repo Repository, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{svc: svc, batches: batches, exports: exports, repo: repo, maxUpload: maxUpload}
}

// Routes mounts every endpoint on a fresh router. Callers mount the result
// under /api/v1.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/tracking/single/{trackingNumber}", h.trackSingle)
	r.Post("/tracking/bulk", h.trackBulk)
	r.Post("/tracking/upload", h.trackUpload)
	r.Get("/tracking/recent", h.recent)
	r.Get("/tracking/history/{trackingNumber}", h.history)
	r.Get("/tracking/history/batch/{batchID}", h.historyByBatch)
	r.Post("/tracking/export", h.createExport)
	r.Get("/tracking/exports/recent", h.exportHistory)
	r.Get("/tracking/download/{filename}", h.download)
	r.Get("/tracking/download/latest/{exportType}", h.downloadLatest)
	r.Get("/tracking/usage", h.usage)
	r.Get("/export/recent", h.recentFiles)
	r.Get("/export/batch/{batchID}", h.exportBatch)
	r.Get("/stats", h.stats)
	r.Get("/health", h.health)

	return r
}

func (h *Handler) trackSingle(w http.ResponseWriter, r *http.Request) {
	tn := chi.URLParam(r, "trackingNumber")
	var bin *string
	if v := strings.TrimSpace(r.URL.Query().Get("bin_id")); v != "" {
		bin = &v
	}
	rec, err := h.svc.TrackSingle(r.Context(), tn, bin)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

type bulkRequest struct {
	TrackingNumbersText string `json:"tracking_numbers_text"`
}

func (h *Handler) trackBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Detail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	inputs := parseNumbersText(req.TrackingNumbersText)
	if len(inputs) == 0 {
		httpx.Detail(w, http.StatusBadRequest, "No tracking numbers provided")
		return
	}
	res, err := h.batches.Process(r.Context(), inputs)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) trackUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		httpx.Detail(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		httpx.Detail(w, http.StatusBadRequest, "No file uploaded")
		return
	}
	defer f.Close()

	if err := files.ValidateName(hdr.Filename, hdr.Size, h.maxUpload); err != nil {
		httpx.Detail(w, http.StatusBadRequest, err.Error())
		return
	}
	inputs, err := files.Parse(hdr.Filename, f)
	if err != nil {
		httpx.Detail(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(inputs) == 0 {
		httpx.Detail(w, http.StatusBadRequest, "No tracking numbers found in file")
		return
	}
	res, err := h.batches.Process(r.Context(), inputs)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.History(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.Recent(r.Context(), queryLimit(r, 10))
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*models.TrackingRecord{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"count":   len(recs),
		"results": recs,
	})
}

func (h *Handler) historyByBatch(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.HistoryByBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []*models.TrackingRecord{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"batch_id": chi.URLParam(r, "batchID"),
		"count":    len(recs),
		"results":  recs,
	})
}

type exportRequest struct {
	TrackingNumbersText string `json:"tracking_numbers_text"`
	Format              string `json:"format"`
	IncludeDetails      bool   `json:"include_details"`
}

func (h *Handler) createExport(w http.ResponseWriter, r *http.Request) {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Detail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !export.ValidFormat(req.Format) {
		httpx.Detail(w, http.StatusBadRequest, "Format must be csv or xlsx")
		return
	}
	inputs := parseNumbersText(req.TrackingNumbersText)
	if len(inputs) == 0 {
		httpx.Detail(w, http.StatusBadRequest, "No tracking numbers provided")
		return
	}
	tns := make([]string, 0, len(inputs))
	for _, in := range inputs {
		tns = append(tns, in.TrackingNumber)
	}
	records, err := h.repo.GetMultiple(r.Context(), tns)
	if err != nil {
		writeError(w, err)
		return
	}
	if len(records) == 0 {
		httpx.Detail(w, http.StatusNotFound, "No tracking records found for export")
		return
	}
	created, err := h.exports.Create(r.Context(), records, req.Format, req.IncludeDetails)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, created)
}

func (h *Handler) exportBatch(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatCSV
	}
	if !export.ValidFormat(format) {
		httpx.Detail(w, http.StatusBadRequest, "Format must be csv or xlsx")
		return
	}
	records, err := h.svc.HistoryByBatch(r.Context(), chi.URLParam(r, "batchID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if len(records) == 0 {
		httpx.Detail(w, http.StatusNotFound, "Batch not found")
		return
	}
	created, err := h.exports.Create(r.Context(), records, format, true)
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, created)
}

func (h *Handler) exportHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.exports.History(r.Context(), r.URL.Query().Get("format"), queryLimit(r, 10))
	if err != nil {
		writeError(w, err)
		return
	}
	if recs == nil {
		recs = []export.HistoryEntry{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"exports": recs})
}

func (h *Handler) recentFiles(w http.ResponseWriter, r *http.Request) {
	infos, err := h.exports.RecentFiles(queryLimit(r, 10))
	if err != nil {
		writeError(w, err)
		return
	}
	if format := r.URL.Query().Get("format"); format != "" {
		filtered := make([]export.FileInfo, 0, len(infos))
		for _, fi := range infos {
			if fi.Format == format {
				filtered = append(filtered, fi)
			}
		}
		infos = filtered
	}
	if infos == nil {
		infos = []export.FileInfo{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"files": infos})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	h.serveFile(w, r, chi.URLParam(r, "filename"))
}

func (h *Handler) downloadLatest(w http.ResponseWriter, r *http.Request) {
	format := chi.URLParam(r, "exportType")
	name, err := h.exports.LatestFile(format)
	if err != nil {
		httpx.Detail(w, http.StatusBadRequest, err.Error())
		return
	}
	if name == "" {
		httpx.Detail(w, http.StatusNotFound, "No export files found")
		return
	}
	h.serveFile(w, r, name)
}

func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, filename string) {
	path, err := h.exports.ResolveDownload(filename)
	if err != nil {
		httpx.Detail(w, http.StatusNotFound, "Export file not found")
		return
	}
	switch filepath.Ext(filename) {
	case ".csv":
		w.Header().Set("Content-Type", "text/csv")
	case ".xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}

func (h *Handler) usage(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Usage(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, u)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeError(w http.ResponseWriter, err error) {
	var se *httpx.StatusError
	if errors.As(err, &se) {
		httpx.Detail(w, se.Status, se.Detail)
		return
	}
	slog.Error("request failed", "error", err.Error())
	httpx.Detail(w, http.StatusInternalServerError, "Internal server error")
}

// parseNumbersText splits pasted input into tracking inputs. One entry per
// line or comma; a colon separates an optional bin id ("TN:BIN").
func parseNumbersText(text string) []models.TrackingInput {
	var out []models.TrackingInput
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	}) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		var bin *string
		if i := strings.IndexByte(part, ':'); i >= 0 {
			if b := strings.TrimSpace(part[i+1:]); b != "" {
				bin = &b
			}
			part = strings.TrimSpace(part[:i])
			if part == "" {
				continue
			}
		}
		out = append(out, models.TrackingInput{TrackingNumber: part, BinID: bin})
	}
	return out
}

func queryLimit(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
