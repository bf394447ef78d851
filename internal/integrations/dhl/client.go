package dhl

import (
	"context"
	"time"
)

// Result is the normalized outcome of one upstream tracking check.
// Lookup failures (unknown number, timeout) come back as an unsuccessful
// Result rather than an error so they can be stored and shown to the user;
// errors are reserved for conditions the caller may want to retry or abort on
// (bad API key, upstream rate limit).
type Result struct {
	TrackingNumber string
	BinID          *string
	StatusCode     *string
	Status         *string
	Origin         *string
	Destination    *string
	DetailsJSON    *string
	IsSuccessful   bool
	ErrorMessage   *string
	CheckedAt      time.Time
}

type Client interface {
	Track(ctx context.Context, trackingNumber string, binID *string) (Result, error)
}
