package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/auth"
	"swapwatch/backend/services/monitoring-service/internal/models"
)

// BatteryClient pulls battery states from the battery backend. It serves both
// the station snapshot and the single-battery detail refresh.
type BatteryClient struct {
	base   *BaseClient
	logger *zap.Logger
}

// NewBatteryClient returns client.
func NewBatteryClient(baseURL string, httpClient HTTPDoer, tokens auth.TokenSource, logger *zap.Logger) *BatteryClient {
	return &BatteryClient{base: NewBaseClient(baseURL, httpClient, tokens), logger: logger}
}

// LoadStates fetches the authoritative battery list for a station.
// Every failure is returned as *models.SnapshotError.
func (c *BatteryClient) LoadStates(ctx context.Context, stationID string) ([]models.BatteryState, error) {
	path := fmt.Sprintf("/stations/%s/battery-states", url.PathEscape(stationID))
	status, body, err := c.base.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, &models.SnapshotError{StationID: stationID, Status: status, Err: err}
	}
	if !isSuccess(status) {
		return nil, &models.SnapshotError{StationID: stationID, Status: status, Err: statusError(status, body)}
	}

	var states []models.BatteryState
	if err := decodePayload(body, &states); err != nil {
		return nil, &models.SnapshotError{StationID: stationID, Status: status, Err: err}
	}

	valid := states[:0]
	for _, st := range states {
		warnings, err := st.Validate()
		if err != nil {
			c.logger.Warn("dropping snapshot record", zap.String("station_id", stationID), zap.Error(err))
			continue
		}
		if len(warnings) > 0 {
			c.logger.Debug("snapshot record out of range", zap.String("battery_id", st.BatteryID), zap.Strings("warnings", warnings))
		}
		valid = append(valid, st)
	}
	return valid, nil
}

// GetState fetches the freshest record for one battery.
// Every failure is returned as *models.DetailFetchError.
func (c *BatteryClient) GetState(ctx context.Context, batteryID string) (models.BatteryState, error) {
	path := fmt.Sprintf("/battery/%s", url.PathEscape(batteryID))
	status, body, err := c.base.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return models.BatteryState{}, &models.DetailFetchError{BatteryID: batteryID, Status: status, Err: err}
	}
	if !isSuccess(status) {
		return models.BatteryState{}, &models.DetailFetchError{BatteryID: batteryID, Status: status, Err: statusError(status, body)}
	}

	var state models.BatteryState
	if err := decodePayload(body, &state); err != nil {
		return models.BatteryState{}, &models.DetailFetchError{BatteryID: batteryID, Status: status, Err: err}
	}
	if _, err := state.Validate(); err != nil {
		return models.BatteryState{}, &models.DetailFetchError{BatteryID: batteryID, Status: status, Err: err}
	}
	return state, nil
}
