package clients

import (
	"context"
	"fmt"
	"net/http"

	"swapwatch/backend/services/monitoring-service/internal/auth"
	"swapwatch/backend/services/monitoring-service/internal/models"
)

// StationsClient lists operational stations from the station service.
type StationsClient struct {
	base *BaseClient
}

// NewStationsClient returns client.
func NewStationsClient(baseURL string, httpClient HTTPDoer, tokens auth.TokenSource) *StationsClient {
	return &StationsClient{base: NewBaseClient(baseURL, httpClient, tokens)}
}

// ListOperationalStations fetches upstream data.
func (c *StationsClient) ListOperationalStations(ctx context.Context) ([]models.Station, error) {
	status, body, err := c.base.Do(ctx, http.MethodGet, "/stations/operational", nil)
	if err != nil {
		return nil, fmt.Errorf("stations: %w", err)
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("stations: %w", statusError(status, body))
	}
	var stations []models.Station
	if err := decodePayload(body, &stations); err != nil {
		return nil, fmt.Errorf("stations: %w", err)
	}
	return stations, nil
}
