package messages

import "time"

// TrackingChecked is published by track-watcher after every upstream check,
// successful or not; track-server consumes it and updates storage.
type TrackingChecked struct {
	TrackingNumber string    `json:"tracking_number"`
	BinID          *string   `json:"bin_id,omitempty"`
	BatchID        *string   `json:"batch_id,omitempty"`
	CheckedAt      time.Time `json:"checked_at"`

	StatusCode  *string `json:"status_code,omitempty"`
	Status      *string `json:"status,omitempty"`
	Origin      *string `json:"origin,omitempty"`
	Destination *string `json:"destination,omitempty"`
	DetailsJSON *string `json:"tracking_details,omitempty"`

	IsSuccessful bool    `json:"is_successful"`
	ErrorMessage *string `json:"error_message,omitempty"`
}
