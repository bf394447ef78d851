package dhlhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/BearBump/TrackDesk/internal/integrations/dhl"
	"github.com/pkg/errors"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api-eu.dhl.com/track/shipments"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type dhlResp struct {
	Shipments []struct {
		Status struct {
			StatusCode string `json:"statusCode"`
			Status     string `json:"status"`
		} `json:"status"`
		Origin                  dhlPlace          `json:"origin"`
		Destination             dhlPlace          `json:"destination"`
		Service                 string            `json:"service"`
		EstimatedTimeOfDelivery string            `json:"estimatedTimeOfDelivery"`
		Events                  []json.RawMessage `json:"events"`
		Details                 struct {
			PieceIds []string `json:"pieceIds"`
		} `json:"details"`
	} `json:"shipments"`
}

type dhlPlace struct {
	Address struct {
		AddressLocality string `json:"addressLocality"`
		CountryCode     string `json:"countryCode"`
	} `json:"address"`
}

func (c *Client) Track(ctx context.Context, trackingNumber string, binID *string) (dhl.Result, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return dhl.Result{}, errors.Wrap(err, "parse base url")
	}
	q := u.Query()
	q.Set("trackingNumber", trackingNumber)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return dhl.Result{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("DHL-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	now := time.Now().UTC()

	resp, err := c.httpc.Do(req)
	if err != nil {
		// Transport failures become displayable unsuccessful results so a batch
		// can carry on with the remaining waybills.
		return failedResult(trackingNumber, binID, now, err.Error()), nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var r dhlResp
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return failedResult(trackingNumber, binID, now, "error parsing response: "+err.Error()), nil
		}
		return c.parseShipments(r, trackingNumber, binID, now), nil
	case resp.StatusCode == http.StatusNotFound:
		return failedResult(trackingNumber, binID, now, "Tracking number not found"), nil
	case resp.StatusCode == http.StatusUnauthorized:
		return dhl.Result{}, fmt.Errorf("dhl: invalid API key")
	case resp.StatusCode == http.StatusTooManyRequests:
		return dhl.Result{}, fmt.Errorf("dhl: rate limit exceeded")
	default:
		return dhl.Result{}, fmt.Errorf("dhl: api request failed: %d", resp.StatusCode)
	}
}

func (c *Client) parseShipments(r dhlResp, trackingNumber string, binID *string, now time.Time) dhl.Result {
	if len(r.Shipments) == 0 {
		return failedResult(trackingNumber, binID, now, "No shipment data found")
	}
	sh := r.Shipments[0]

	statusCode := sh.Status.StatusCode
	if statusCode == "" {
		statusCode = "unknown"
	}
	status := sh.Status.Status
	if status == "" {
		status = "Unknown"
	}

	events := sh.Events
	if len(events) > 5 {
		events = events[:5]
	}
	details := map[string]any{
		"service":            sh.Service,
		"estimated_delivery": sh.EstimatedTimeOfDelivery,
		"events":             events,
		"pieces":             sh.Details.PieceIds,
	}
	var detailsJSON *string
	if b, err := json.Marshal(details); err == nil {
		s := string(b)
		detailsJSON = &s
	}

	origin := extractLocation(sh.Origin)
	destination := extractLocation(sh.Destination)

	return dhl.Result{
		TrackingNumber: trackingNumber,
		BinID:          binID,
		StatusCode:     &statusCode,
		Status:         &status,
		Origin:         &origin,
		Destination:    &destination,
		DetailsJSON:    detailsJSON,
		IsSuccessful:   true,
		CheckedAt:      now,
	}
}

func extractLocation(p dhlPlace) string {
	city := p.Address.AddressLocality
	country := p.Address.CountryCode
	switch {
	case city != "" && country != "":
		return city + ", " + country
	case city != "":
		return city
	case country != "":
		return country
	default:
		return "Unknown"
	}
}

func failedResult(trackingNumber string, binID *string, now time.Time, msg string) dhl.Result {
	return dhl.Result{
		TrackingNumber: trackingNumber,
		BinID:          binID,
		IsSuccessful:   false,
		ErrorMessage:   &msg,
		CheckedAt:      now,
	}
}
