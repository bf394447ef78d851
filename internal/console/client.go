// Package console is the operator-facing side of TrackDesk: a thin typed
// client for the tracking API plus server-rendered panels that show its
// responses as HTML fragments.
package console

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// TrackingResult mirrors what the API returns for one waybill. Everything
// except the tracking number is optional; failed lookups come back with
// partial data.
type TrackingResult struct {
	TrackingNumber string     `json:"tracking_number"`
	BinID          *string    `json:"bin_id"`
	StatusCode     *string    `json:"status_code"`
	Status         *string    `json:"status"`
	Origin         *string    `json:"origin"`
	Destination    *string    `json:"destination"`
	LastChecked    *time.Time `json:"last_checked"`
	IsSuccessful   *bool      `json:"is_successful"`
	ErrorMessage   *string    `json:"error_message"`
}

type BatchUploadResponse struct {
	BatchID        string           `json:"batch_id"`
	TotalRequested int              `json:"total_requested"`
	Successful     int              `json:"successful"`
	Failed         int              `json:"failed"`
	ProcessingTime float64          `json:"processing_time"`
	Results        []TrackingResult `json:"results"`
}

type BatchHistoryResponse struct {
	BatchID string           `json:"batch_id"`
	Count   int              `json:"count"`
	Results []TrackingResult `json:"results"`
}

type ExportFile struct {
	Filename    string `json:"filename"`
	CreatedAt   string `json:"created_at"`
	FileSize    string `json:"file_size"`
	RecordCount int    `json:"record_count"`
	ExportType  string `json:"export_type"`
}

type ExportResponse struct {
	FileName    string `json:"file_name"`
	RecordCount int    `json:"record_count"`
}

type StatsSnapshot struct {
	TotalTrackingRecords    int64 `json:"total_tracking_records"`
	APIRequestsToday        int   `json:"api_requests_today"`
	APIRequestsRemaining    int   `json:"api_requests_remaining"`
	SuccessfulRequestsToday int   `json:"successful_requests_today"`
	FailedRequestsToday     int   `json:"failed_requests_today"`
}

type UsageSnapshot struct {
	Date              string  `json:"date"`
	RequestsUsed      int     `json:"requests_used"`
	RequestsRemaining int     `json:"requests_remaining"`
	DailyLimit        int     `json:"daily_limit"`
	PercentageUsed    float64 `json:"percentage_used"`
}

// APIError is a non-2xx response with the server's detail text already
// extracted.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string { return e.Detail }

// Client talks to the tracking API at a fixed base URL.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

// TrackSingle looks up one waybill. The input goes into the path exactly as
// given; the server owns normalization.
func (c *Client) TrackSingle(ctx context.Context, trackingNumber string) (*TrackingResult, error) {
	var out TrackingResult
	if err := c.get(ctx, "/tracking/single/"+trackingNumber, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends a waybill file as multipart form data and returns the batch
// outcome.
func (c *Client) Upload(ctx context.Context, filename string, file io.Reader) (*BatchUploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, errors.Wrap(err, "build multipart form")
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, errors.Wrap(err, "copy upload body")
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "finish multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tracking/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out BatchUploadResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) BatchHistory(ctx context.Context, batchID string) (*BatchHistoryResponse, error) {
	var out BatchHistoryResponse
	if err := c.get(ctx, "/tracking/history/batch/"+batchID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateExport(ctx context.Context, trackingNumbersText, format string, includeDetails bool) (*ExportResponse, error) {
	body, err := json.Marshal(map[string]any{
		"tracking_numbers_text": trackingNumbersText,
		"format":                format,
		"include_details":       includeDetails,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tracking/export", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var out ExportResponse
	if err := c.do(req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExportBatch(ctx context.Context, batchID, format string) (*ExportResponse, error) {
	var out ExportResponse
	if err := c.get(ctx, "/export/batch/"+batchID+"?format="+format, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RecentExports(ctx context.Context, limit int) ([]ExportFile, error) {
	var out struct {
		Exports []ExportFile `json:"exports"`
	}
	if err := c.get(ctx, "/tracking/exports/recent?limit="+strconv.Itoa(limit), &out); err != nil {
		return nil, err
	}
	return out.Exports, nil
}

func (c *Client) Stats(ctx context.Context) (*StatsSnapshot, error) {
	var out StatsSnapshot
	if err := c.get(ctx, "/stats", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Usage(ctx context.Context) (*UsageSnapshot, error) {
	var out UsageSnapshot
	if err := c.get(ctx, "/tracking/usage", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DownloadURL is the direct link for a generated report file. Downloads are
// plain navigation, not client calls, so the browser can stream the file.
func (c *Client) DownloadURL(filename string) string {
	return c.baseURL + "/tracking/download/" + filename
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Errorf("Connection error: %s", err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Errorf("Connection error: %s", err.Error())
	}

	if resp.StatusCode/100 != 2 {
		detail := fmt.Sprintf("Request failed with status %d", resp.StatusCode)
		var e struct {
			Detail string `json:"detail"`
		}
		if json.Unmarshal(body, &e) == nil && e.Detail != "" {
			detail = e.Detail
		}
		return &APIError{StatusCode: resp.StatusCode, Detail: detail}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Errorf("Connection error: %s", err.Error())
	}
	return nil
}
