package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/auth"
	"swapwatch/backend/services/monitoring-service/internal/http/handlers"
	"swapwatch/backend/services/monitoring-service/internal/http/middleware"
	"swapwatch/backend/services/monitoring-service/internal/models"
	"swapwatch/backend/services/monitoring-service/internal/session"
)

type fakeMonitor struct {
	stations   []models.Station
	stationErr error
	selectErr  error
	refreshErr error
	selected   string
	current    []models.BatteryState
	status     session.Status
	detail     models.BatteryState
	detailErr  error
	inspected  string
}

func (m *fakeMonitor) ListStations(context.Context) ([]models.Station, error) {
	return m.stations, m.stationErr
}

func (m *fakeMonitor) SelectStation(_ context.Context, stationID string) error {
	m.selected = stationID
	return m.selectErr
}

func (m *fakeMonitor) Refresh(context.Context) error  { return m.refreshErr }
func (m *fakeMonitor) Current() []models.BatteryState { return m.current }
func (m *fakeMonitor) Status() session.Status         { return m.status }

func (m *fakeMonitor) InspectBattery(_ context.Context, batteryID string) (models.BatteryState, error) {
	m.inspected = batteryID
	return m.detail, m.detailErr
}

type envelope struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

type routerHarness struct {
	handler http.Handler
	monitor *fakeMonitor
	token   string
}

func newRouterHarness(t *testing.T) *routerHarness {
	t.Helper()
	tokens := auth.NewTokenService("secret", time.Hour)
	token, err := tokens.GenerateToken(3, "operator", auth.RoleStaff)
	require.NoError(t, err)

	monitor := &fakeMonitor{
		status:  session.Status{State: session.StateStreaming, StationID: "S1", Connected: true, BatteryCount: 1},
		current: []models.BatteryState{{BatteryID: "b1", CurrentStationID: "S1", ChargeLevel: 82}},
	}
	router := NewRouter(RouterDeps{
		Monitoring:    handlers.NewMonitoringHandlers(monitor, zap.NewNop()),
		HealthHandler: handlers.NewHealthHandler(),
		Viewers: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		},
	}, middleware.AuthMiddleware(tokens, auth.RoleStaff, auth.RoleAdmin))

	return &routerHarness{handler: router, monitor: monitor, token: token}
}

func (h *routerHarness) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+h.token)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealthNeedsNoAuth(t *testing.T) {
	h := newRouterHarness(t)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMonitoringRoutesRequireAuth(t *testing.T) {
	h := newRouterHarness(t)
	for _, path := range []string{
		"/api/battery-monitoring/stations",
		"/api/battery-monitoring/states",
		"/api/battery-monitoring/status",
		"/api/battery-monitoring/battery/b1",
		"/api/battery-monitoring/ws",
	} {
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newRouterHarness(t)
	rec, _ := h.do(t, http.MethodGet, "/api/battery-monitoring/select", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

func TestStations(t *testing.T) {
	h := newRouterHarness(t)
	h.monitor.stations = []models.Station{{ID: "S1", Name: "Central"}}
	rec, env := h.do(t, http.MethodGet, "/api/battery-monitoring/stations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Operational stations", env.Message)
	assert.JSONEq(t, `[{"id":"S1","name":"Central","address":""}]`, string(env.Data))

	h.monitor.stationErr = errors.New("down")
	rec, env = h.do(t, http.MethodGet, "/api/battery-monitoring/stations", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotEmpty(t, env.Error)
}

func TestSelect(t *testing.T) {
	h := newRouterHarness(t)
	rec, env := h.do(t, http.MethodPost, "/api/battery-monitoring/select", `{"stationId":"S1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "S1", h.monitor.selected)

	var data struct {
		Status    session.Status        `json:"status"`
		Batteries []models.BatteryState `json:"batteries"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, session.StateStreaming, data.Status.State)
	require.Len(t, data.Batteries, 1)

	rec, _ = h.do(t, http.MethodPost, "/api/battery-monitoring/select", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = h.do(t, http.MethodPost, "/api/battery-monitoring/select", `nope`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	h.monitor.selectErr = &models.SnapshotError{StationID: "S1", Status: 503, Err: errors.New("down")}
	rec, env = h.do(t, http.MethodPost, "/api/battery-monitoring/select", `{"stationId":"S1"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, env.Error, "503")

	h.monitor.selectErr = models.ErrSuperseded
	rec, _ = h.do(t, http.MethodPost, "/api/battery-monitoring/select", `{"stationId":"S1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefresh(t *testing.T) {
	h := newRouterHarness(t)
	rec, env := h.do(t, http.MethodPost, "/api/battery-monitoring/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Battery states refreshed", env.Message)

	h.monitor.refreshErr = models.ErrNoStationSelected
	rec, _ = h.do(t, http.MethodPost, "/api/battery-monitoring/refresh", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	h.monitor.refreshErr = models.ErrSessionClosed
	rec, _ = h.do(t, http.MethodPost, "/api/battery-monitoring/refresh", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatesAndStatus(t *testing.T) {
	h := newRouterHarness(t)
	rec, env := h.do(t, http.MethodGet, "/api/battery-monitoring/states", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var states []models.BatteryState
	require.NoError(t, json.Unmarshal(env.Data, &states))
	require.Len(t, states, 1)
	assert.Equal(t, float64(82), states[0].ChargeLevel)

	rec, env = h.do(t, http.MethodGet, "/api/battery-monitoring/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var status session.Status
	require.NoError(t, json.Unmarshal(env.Data, &status))
	assert.True(t, status.Connected)
}

func TestBatteryDetail(t *testing.T) {
	h := newRouterHarness(t)
	h.monitor.detail = models.BatteryState{BatteryID: "b 1", CurrentStationID: "S1"}
	rec, _ := h.do(t, http.MethodGet, "/api/battery-monitoring/battery/b%201", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b 1", h.monitor.inspected)

	h.monitor.detailErr = &models.DetailFetchError{BatteryID: "b1", Status: 404, Err: errors.New("missing")}
	rec, _ = h.do(t, http.MethodGet, "/api/battery-monitoring/battery/b1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	h.monitor.detailErr = &models.DetailFetchError{BatteryID: "b1", Status: 500, Err: errors.New("boom")}
	rec, _ = h.do(t, http.MethodGet, "/api/battery-monitoring/battery/b1", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec, _ = h.do(t, http.MethodGet, "/api/battery-monitoring/battery/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestViewerRouteIsWired(t *testing.T) {
	h := newRouterHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/battery-monitoring/ws?access_token="+h.token, nil)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
