package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/models"
	"swapwatch/backend/services/monitoring-service/internal/session"
)

// BatteryPathPrefix is the route prefix of the battery detail endpoint.
const BatteryPathPrefix = "/api/battery-monitoring/battery/"

// Monitor is the session surface exposed over HTTP.
type Monitor interface {
	ListStations(ctx context.Context) ([]models.Station, error)
	SelectStation(ctx context.Context, stationID string) error
	Refresh(ctx context.Context) error
	Current() []models.BatteryState
	Status() session.Status
	InspectBattery(ctx context.Context, batteryID string) (models.BatteryState, error)
}

// MonitoringHandlers serves the battery monitoring page.
type MonitoringHandlers struct {
	monitor Monitor
	logger  *zap.Logger
}

// NewMonitoringHandlers returns handlers.
func NewMonitoringHandlers(monitor Monitor, logger *zap.Logger) *MonitoringHandlers {
	return &MonitoringHandlers{monitor: monitor, logger: logger}
}

type selectRequest struct {
	StationID string `json:"stationId"`
}

type selectionResponse struct {
	Status    session.Status        `json:"status"`
	Batteries []models.BatteryState `json:"batteries"`
}

// Stations handles GET /api/battery-monitoring/stations.
func (h *MonitoringHandlers) Stations(w http.ResponseWriter, r *http.Request) {
	stations, err := h.monitor.ListStations(r.Context())
	if err != nil {
		h.logger.Error("list stations failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "station catalog unavailable")
		return
	}
	if stations == nil {
		stations = []models.Station{}
	}
	writeData(w, http.StatusOK, "Operational stations", stations)
}

// Select handles POST /api/battery-monitoring/select.
func (h *MonitoringHandlers) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.StationID) == "" {
		writeError(w, http.StatusBadRequest, "stationId is required")
		return
	}

	if err := h.monitor.SelectStation(r.Context(), req.StationID); err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeData(w, http.StatusOK, "Station selected", h.selection())
}

// Refresh handles POST /api/battery-monitoring/refresh.
func (h *MonitoringHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.monitor.Refresh(r.Context()); err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeData(w, http.StatusOK, "Battery states refreshed", h.selection())
}

// States handles GET /api/battery-monitoring/states.
func (h *MonitoringHandlers) States(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "Battery states", h.monitor.Current())
}

// Status handles GET /api/battery-monitoring/status.
func (h *MonitoringHandlers) Status(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, "Monitoring status", h.monitor.Status())
}

// Battery handles GET /api/battery-monitoring/battery/{batteryId}.
func (h *MonitoringHandlers) Battery(w http.ResponseWriter, r *http.Request) {
	batteryID := strings.Trim(strings.TrimPrefix(r.URL.Path, BatteryPathPrefix), "/")
	if batteryID == "" || strings.Contains(batteryID, "/") {
		writeError(w, http.StatusBadRequest, "battery id is required")
		return
	}

	state, err := h.monitor.InspectBattery(r.Context(), batteryID)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	writeData(w, http.StatusOK, "Battery state", state)
}

func (h *MonitoringHandlers) selection() selectionResponse {
	return selectionResponse{Status: h.monitor.Status(), Batteries: h.monitor.Current()}
}

func (h *MonitoringHandlers) writeSessionError(w http.ResponseWriter, err error) {
	var (
		snapErr   *models.SnapshotError
		detailErr *models.DetailFetchError
	)
	switch {
	case errors.As(err, &detailErr):
		if detailErr.Status == http.StatusNotFound {
			writeError(w, http.StatusNotFound, "battery not found")
			return
		}
		if errors.Is(err, models.ErrMissingBatteryID) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Warn("battery detail failed", zap.String("battery_id", detailErr.BatteryID), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &snapErr):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, models.ErrNoStationSelected):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrSuperseded):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrSessionClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.logger.Error("monitoring request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
