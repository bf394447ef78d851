package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/BearBump/TrackDesk/internal/integrations/dhl"
)

// FakeClient stands in for the DHL API in dev/test setups without an API key.
// Status is deterministic by tracking number so repeated runs agree.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) Track(ctx context.Context, trackingNumber string, binID *string) (dhl.Result, error) {
	now := time.Now().UTC()

	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingNumber))
	v := h.Sum32()

	// ~10% of waybills come back unknown.
	if v%10 == 9 {
		msg := "Tracking number not found"
		return dhl.Result{
			TrackingNumber: trackingNumber,
			BinID:          binID,
			IsSuccessful:   false,
			ErrorMessage:   &msg,
			CheckedAt:      now,
		}, nil
	}

	statusCode := "transit"
	status := "Shipment in transit"
	if v%5 == 0 {
		statusCode = "delivered"
		status = "Delivered"
	}

	origin := "Johannesburg, ZA"
	destination := "Cape Town, ZA"
	details := fmt.Sprintf(`{"service":"fake","events":[{"timestamp":%q,"description":%q}]}`,
		now.Format(time.RFC3339), status)

	return dhl.Result{
		TrackingNumber: trackingNumber,
		BinID:          binID,
		StatusCode:     &statusCode,
		Status:         &status,
		Origin:         &origin,
		Destination:    &destination,
		DetailsJSON:    &details,
		IsSuccessful:   true,
		CheckedAt:      now,
	}, nil
}
