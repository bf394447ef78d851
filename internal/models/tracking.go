package models

import "time"

// DHL status codes as returned by the upstream tracking API.
const (
	StatusCodeUnknown    = "unknown"
	StatusCodePreTransit = "pre-transit"
	StatusCodeTransit    = "transit"
	StatusCodeDelivered  = "delivered"
	StatusCodeFailure    = "failure"
)

type TrackingRecord struct {
	ID             uint64     `json:"id"`
	TrackingNumber string     `json:"tracking_number"`
	BinID          *string    `json:"bin_id"`
	StatusCode     *string    `json:"status_code"`
	Status         *string    `json:"status"`
	Origin         *string    `json:"origin"`
	Destination    *string    `json:"destination"`
	DetailsJSON    *string    `json:"details"`
	BatchID        *string    `json:"batch_id"`
	IsSuccessful   bool       `json:"is_successful"`
	ErrorMessage   *string    `json:"error_message"`
	LastChecked    *time.Time `json:"last_checked"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TrackingInput is one waybill to check, with its optional bin association.
type TrackingInput struct {
	TrackingNumber string  `json:"tracking_number"`
	BinID          *string `json:"bin_id"`
}

type APIUsage struct {
	Date               string    `json:"date"` // YYYY-MM-DD
	RequestCount       int       `json:"request_count"`
	SuccessfulRequests int       `json:"successful_requests"`
	FailedRequests     int       `json:"failed_requests"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type ExportRecord struct {
	ID              uint64    `json:"id"`
	ExportType      string    `json:"export_type"`
	FilePath        string    `json:"file_path"`
	TrackingNumbers []string  `json:"tracking_numbers"`
	RecordCount     int       `json:"record_count"`
	CreatedAt       time.Time `json:"created_at"`
}
