package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/auth"
	"swapwatch/backend/services/monitoring-service/internal/config"
	"swapwatch/backend/services/monitoring-service/internal/session"
)

// upstream fakes the battery service, the station catalog and the push stream.
func upstream(t *testing.T, frames chan string) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/stations/operational", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"S1","name":"Central","address":"Main st"}]`))
	})
	mux.HandleFunc("/stations/S1/battery-states", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer upstream-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"message":"ok","data":[{"batteryId":"b1","currentStationId":"S1","status":"CHARGING","chargeLevel":70}]}`))
	})
	mux.HandleFunc("/stations/S1/stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			select {
			case frame, ok := <-frames:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
					return
				}
			case <-r.Context().Done():
				return
			}
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(upstreamURL string) *config.Config {
	cfg := &config.Config{}
	cfg.HTTP.Port = "0"
	cfg.JWT.Secret = "secret"
	cfg.Upstream.BatteryURL = upstreamURL
	cfg.Upstream.StationsURL = upstreamURL
	cfg.Upstream.Token = "upstream-token"
	cfg.WebSocket.PingIntervalSeconds = 1
	return cfg
}

func TestMonitoringEndToEnd(t *testing.T) {
	frames := make(chan string, 4)
	up := upstream(t, frames)

	application, err := New(context.Background(), testConfig(up.URL), zap.NewNop())
	require.NoError(t, err)
	defer application.Close()
	defer close(frames)

	token, err := auth.NewTokenService("secret", time.Hour).GenerateToken(1, "operator", auth.RoleAdmin)
	require.NoError(t, err)

	api := httptest.NewServer(application.Handler())
	defer api.Close()

	call := func(method, path, body string) (int, json.RawMessage) {
		req, err := http.NewRequest(method, api.URL+path, strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var env struct {
			Data json.RawMessage `json:"data"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&env)
		return resp.StatusCode, env.Data
	}

	status, data := call(http.MethodGet, "/api/battery-monitoring/stations", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(data), "Central")

	status, _ = call(http.MethodPost, "/api/battery-monitoring/select", `{"stationId":"S1"}`)
	require.Equal(t, http.StatusOK, status)

	require.Eventually(t, func() bool {
		return application.Session().Status().Connected
	}, 2*time.Second, 10*time.Millisecond)

	viewerURL := "ws" + strings.TrimPrefix(api.URL, "http") + "/api/battery-monitoring/ws?access_token=" + token
	viewer, _, err := websocket.DefaultDialer.Dial(viewerURL, nil)
	require.NoError(t, err)
	defer viewer.Close()

	readFrame := func() (string, json.RawMessage) {
		require.NoError(t, viewer.SetReadDeadline(time.Now().Add(2*time.Second)))
		var f struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, viewer.ReadJSON(&f))
		return f.Event, f.Data
	}
	event, _ := readFrame()
	require.Equal(t, "snapshot", event)
	event, _ = readFrame()
	require.Equal(t, "status", event)

	frames <- `{"event":"battery-update","data":{"batteryId":"b1","currentStationId":"S1","status":"CHARGING","chargeLevel":82}}`
	event, data = readFrame()
	require.Equal(t, "snapshot", event)
	assert.Contains(t, string(data), `"chargeLevel":82`)

	frames <- `{"event":"alert","data":{"level":"CRITICAL","message":"overheat","batteryId":"b1"}}`
	event, data = readFrame()
	require.Equal(t, "toast", event)
	assert.Contains(t, string(data), `"presentation":"error"`)

	status, data = call(http.MethodGet, "/api/battery-monitoring/status", "")
	require.Equal(t, http.StatusOK, status)
	var st session.Status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, session.StateStreaming, st.State)
	assert.Equal(t, 1, st.BatteryCount)
}

func TestDefaultStationSelection(t *testing.T) {
	frames := make(chan string)
	up := upstream(t, frames)
	cfg := testConfig(up.URL)
	cfg.Monitoring.DefaultStation = config.DefaultStationFirst

	application, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer application.Close()
	defer close(frames)

	application.selectDefaultStation(context.Background())
	st := application.Session().Status()
	assert.Equal(t, "S1", st.StationID)
	assert.Equal(t, 1, st.BatteryCount)
}
