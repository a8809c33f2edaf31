package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/models"
)

// fakeBackend is a station stream endpoint. Each accepted connection receives
// the frames queued in script, then waits for hold to be closed.
type fakeBackend struct {
	t        *testing.T
	upgrader websocket.Upgrader
	script   []string
	hold     chan struct{}
	authSeen chan string
	pathSeen chan string
}

func newFakeBackend(t *testing.T, script ...string) (*fakeBackend, *httptest.Server) {
	b := &fakeBackend{
		t:        t,
		script:   script,
		hold:     make(chan struct{}),
		authSeen: make(chan string, 1),
		pathSeen: make(chan string, 1),
	}
	srv := httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(func() {
		select {
		case <-b.hold:
		default:
			close(b.hold)
		}
		srv.Close()
	})
	return b, srv
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer good" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	b.authSeen <- r.Header.Get("Authorization")
	b.pathSeen <- r.URL.Path

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for _, msg := range b.script {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
	}
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	<-b.hold
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"), time.Now().Add(time.Second))
}

func collect() (Listener, <-chan Event) {
	ch := make(chan Event, 32)
	return func(_ *Subscription, ev Event) { ch <- ev }, ch
}

func next(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for stream event")
		return Event{}
	}
}

func TestOpenDeliversTypedEventsInOrder(t *testing.T) {
	backend, srv := newFakeBackend(t,
		`{"event":"connected","data":"hello"}`,
		`{"event":"battery-update","data":{"batteryId":"b1","currentStationId":"S1","chargeLevel":82}}`,
		`not json`,
		`{"event":"battery-update","data":{"currentStationId":"S1"}}`,
		`{"event":"alert","data":{"level":"CRITICAL","message":"overheat","batteryId":"b1"}}`,
	)

	client := NewClient(srv.URL, Options{PingInterval: time.Second}, zap.NewNop())
	listener, events := collect()

	sub, err := client.Open(context.Background(), "S1", "good", listener)
	require.NoError(t, err)
	defer client.Close(sub)

	assert.Equal(t, "Bearer good", <-backend.authSeen)
	assert.Equal(t, "/stations/S1/stream", <-backend.pathSeen)

	ev := next(t, events)
	assert.Equal(t, EventConnected, ev.Type)
	assert.Equal(t, StateConnected, sub.State())

	ev = next(t, events)
	require.Equal(t, EventBatteryUpdate, ev.Type)
	assert.Equal(t, float64(82), ev.Battery.ChargeLevel)

	ev = next(t, events)
	require.Equal(t, EventAlert, ev.Type)
	assert.Equal(t, models.AlertEvent{Level: models.SeverityCritical, Message: "overheat", BatteryID: "b1"}, *ev.Alert)

	select {
	case extra := <-events:
		t.Fatalf("unexpected event %v", extra.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestServerDisconnectEmitsErrorWithoutReconnect(t *testing.T) {
	backend, srv := newFakeBackend(t)
	client := NewClient(srv.URL, Options{PingInterval: time.Second}, zap.NewNop())
	listener, events := collect()

	sub, err := client.Open(context.Background(), "S1", "good", listener)
	require.NoError(t, err)
	<-backend.authSeen
	<-backend.pathSeen

	assert.Equal(t, EventConnected, next(t, events).Type)
	close(backend.hold)

	ev := next(t, events)
	require.Equal(t, EventError, ev.Type)
	var connErr *models.StreamConnectionError
	require.True(t, errors.As(ev.Err, &connErr))
	assert.Equal(t, "S1", connErr.StationID)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read goroutine did not exit")
	}
	assert.Equal(t, StateDisconnected, sub.State())

	select {
	case <-backend.authSeen:
		t.Fatal("client reconnected on its own")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseIsIdempotentAndSilent(t *testing.T) {
	backend, srv := newFakeBackend(t)
	client := NewClient(srv.URL, Options{PingInterval: time.Second}, zap.NewNop())
	listener, events := collect()

	sub, err := client.Open(context.Background(), "S1", "good", listener)
	require.NoError(t, err)
	<-backend.authSeen
	<-backend.pathSeen
	assert.Equal(t, EventConnected, next(t, events).Type)

	client.Close(sub)
	client.Close(sub)
	sub.Close()
	client.Close(nil)

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("read goroutine did not exit")
	}
	assert.True(t, sub.Closed())
	assert.Equal(t, StateDisconnected, sub.State())

	select {
	case ev := <-events:
		t.Fatalf("event after close: %v", ev.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestOpenFailures(t *testing.T) {
	_, srv := newFakeBackend(t)
	client := NewClient(srv.URL, Options{}, zap.NewNop())

	_, err := client.Open(context.Background(), "S1", "", nil)
	var connErr *models.StreamConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.ErrorIs(t, err, models.ErrMissingToken)

	_, err = client.Open(context.Background(), "S1", "bad", nil)
	require.True(t, errors.As(err, &connErr))
	assert.Contains(t, err.Error(), "401")
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		base     string
		expected string
		wantErr  bool
	}{
		{base: "http://api.local:8080", expected: "ws://api.local:8080/stations/S%201/stream"},
		{base: "https://api.local/monitoring/", expected: "wss://api.local/monitoring/stations/S%201/stream"},
		{base: "wss://push.local", expected: "wss://push.local/stations/S%201/stream"},
		{base: "ftp://nope", wantErr: true},
	}
	for _, tc := range tests {
		got, err := NewClient(tc.base, Options{}, zap.NewNop()).StreamURL("S 1")
		if tc.wantErr {
			assert.Error(t, err, tc.base)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tc.expected, got)
	}
}

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(`{"event":"battery-update","data":"{\"batteryId\":\"b1\",\"currentStationId\":\"S1\"}"}`))
	require.NoError(t, err)
	assert.Equal(t, "b1", ev.Battery.BatteryID)

	ev, err = DecodeEvent([]byte(`{"event":"alert","data":{"level":"WARNING","message":"hot"}}`))
	require.NoError(t, err)
	assert.Equal(t, models.SeverityWarning, ev.Alert.Level)

	for _, raw := range []string{
		`{"event":"battery-update"}`,
		`{"event":"battery-update","data":{"chargeLevel":1}}`,
		`{"event":"alert","data":[1,2]}`,
		`{"event":"rename","data":{}}`,
		`[]`,
	} {
		_, err := DecodeEvent([]byte(raw))
		var malformed *models.MalformedEventError
		assert.True(t, errors.As(err, &malformed), raw)
	}
}
