package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/auth"
	"swapwatch/backend/services/monitoring-service/internal/models"
	"swapwatch/backend/services/monitoring-service/internal/store"
	"swapwatch/backend/services/monitoring-service/internal/stream"
)

// State is the lifecycle state of a monitoring session.
type State string

const (
	StateIdle            State = "IDLE"
	StateLoadingSnapshot State = "LOADING_SNAPSHOT"
	StateStreaming       State = "STREAMING"
	StateError           State = "ERROR"
)

// Status is what the UI shows next to the battery grid.
type Status struct {
	State        State  `json:"state"`
	StationID    string `json:"stationId,omitempty"`
	Connected    bool   `json:"connected"`
	LastError    string `json:"lastError,omitempty"`
	BatteryCount int    `json:"batteryCount"`
	Version      uint64 `json:"version"`
}

// Deps groups the collaborators of a session.
type Deps struct {
	Store     *store.ReconciliationStore
	Loader    SnapshotLoader
	Details   DetailFetcher
	Catalog   StationCatalog
	Streams   StreamOpener
	Tokens    auth.TokenSource
	Alerts    AlertDispatcher
	Observers []Observer
	Logger    *zap.Logger
}

// Session couples a station selection to its snapshot load and push
// subscription. It is the only writer of its store.
//
// Every selection bumps gen. Loads and stream listeners capture the gen they
// were started under and their results are dropped once it has moved on, so
// a late snapshot or an event from a replaced subscription never reaches the
// store.
type Session struct {
	deps   Deps
	logger *zap.Logger

	// ctx is cancelled by Teardown and bounds alert delivery.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     State
	stationID string
	gen       uint64
	sub       Subscription
	connected bool
	lastErr   error
	closed    bool

	// cancelDial aborts the dial of the current generation, if one is pending.
	cancelDial context.CancelFunc
}

// New returns an idle session.
func New(deps Deps) *Session {
	if deps.Store == nil {
		deps.Store = store.New()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		deps:   deps,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		state:  StateIdle,
	}
}

// Store exposes the reconciliation store for readers.
func (s *Session) Store() *store.ReconciliationStore {
	return s.deps.Store
}

// SelectStation scopes the session to stationID: the previous subscription is
// closed, the store is reset, the snapshot is loaded and the stream opened.
// A snapshot failure is returned as *models.SnapshotError and leaves the session
// idle with an empty store. A stream failure is not returned; it shows up in
// Status.
func (s *Session) SelectStation(ctx context.Context, stationID string) error {
	stationID = strings.TrimSpace(stationID)
	if stationID == "" {
		return fmt.Errorf("%w: empty station id", models.ErrNoStationSelected)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.ErrSessionClosed
	}
	s.closeSubscriptionLocked()
	s.gen++
	gen := s.gen
	s.stationID = stationID
	s.deps.Store.Reset(stationID)
	s.state = StateLoadingSnapshot
	s.connected = false
	s.lastErr = nil
	s.notifyStoreLocked()
	s.notifyStatusLocked()
	s.mu.Unlock()

	s.logger.Info("station selected", zap.String("station_id", stationID))
	return s.load(ctx, gen, stationID, true)
}

// Refresh reloads the snapshot of the current station without resetting the
// store. A failed reload keeps the current contents. If the stream is not
// connected it is reopened.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.ErrSessionClosed
	}
	if s.stationID == "" {
		s.mu.Unlock()
		return models.ErrNoStationSelected
	}
	gen := s.gen
	stationID := s.stationID
	reopen := s.sub == nil || !s.connected
	s.state = StateLoadingSnapshot
	s.notifyStatusLocked()
	s.mu.Unlock()

	s.logger.Info("refreshing battery snapshot", zap.String("station_id", stationID), zap.Bool("reopen_stream", reopen))
	return s.load(ctx, gen, stationID, reopen)
}

// load fetches the snapshot for gen and, when openStream is set, opens a fresh
// subscription after applying it.
func (s *Session) load(ctx context.Context, gen uint64, stationID string, openStream bool) error {
	states, err := s.deps.Loader.LoadStates(ctx, stationID)

	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		s.logger.Debug("discarding superseded snapshot", zap.String("station_id", stationID))
		return models.ErrSuperseded
	}
	if err != nil {
		var snapErr *models.SnapshotError
		if !errors.As(err, &snapErr) {
			err = &models.SnapshotError{StationID: stationID, Err: err}
		}
		s.lastErr = err
		s.state = s.settledStateLocked()
		s.notifyStatusLocked()
		s.mu.Unlock()
		s.logger.Warn("battery snapshot failed", zap.String("station_id", stationID), zap.Error(err))
		return err
	}

	s.deps.Store.ApplySnapshot(states)
	s.lastErr = nil
	s.state = StateStreaming
	s.notifyStoreLocked()
	// The stream may have dropped while the snapshot was loading.
	if !s.connected {
		openStream = true
	}
	var dialCtx context.Context
	if openStream {
		s.closeSubscriptionLocked()
		s.connected = false
		s.gen++
		gen = s.gen
		dialCtx, s.cancelDial = context.WithCancel(ctx)
	}
	s.notifyStatusLocked()
	s.mu.Unlock()

	if openStream {
		s.openStream(dialCtx, gen, stationID)
	}
	return nil
}

// settledStateLocked is the state to fall back to after a failed load.
func (s *Session) settledStateLocked() State {
	if s.sub != nil && s.connected {
		return StateStreaming
	}
	return StateIdle
}

func (s *Session) openStream(ctx context.Context, gen uint64, stationID string) {
	token, err := s.deps.Tokens.Token(ctx)
	if err != nil {
		s.streamFailed(gen, &models.StreamConnectionError{StationID: stationID, Err: err})
		return
	}

	sub, err := s.deps.Streams.Open(ctx, stationID, token, func(ev stream.Event) {
		s.handleEvent(gen, ev)
	})
	if err != nil {
		var connErr *models.StreamConnectionError
		if !errors.As(err, &connErr) {
			err = &models.StreamConnectionError{StationID: stationID, Err: err}
		}
		s.streamFailed(gen, err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(gen) {
		sub.Close()
		return
	}
	s.sub = sub
}

func (s *Session) streamFailed(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.currentLocked(gen) {
		return
	}
	s.connected = false
	s.lastErr = err
	s.state = StateError
	s.notifyStatusLocked()
	s.logger.Warn("battery stream unavailable", zap.String("station_id", s.stationID), zap.Error(err))
}

func (s *Session) handleEvent(gen uint64, ev stream.Event) {
	s.mu.Lock()
	if !s.currentLocked(gen) {
		s.mu.Unlock()
		return
	}

	switch ev.Type {
	case stream.EventConnected:
		s.connected = true
		if s.state == StateError {
			s.state = StateStreaming
		}
		s.notifyStatusLocked()
	case stream.EventBatteryUpdate:
		if ev.Battery != nil {
			if change := s.deps.Store.ApplyUpdate(*ev.Battery); change.Mutated() {
				s.notifyStoreLocked()
			}
		}
	case stream.EventAlert:
		stationID := s.stationID
		s.mu.Unlock()
		if ev.Alert != nil && s.deps.Alerts != nil {
			s.deps.Alerts.Dispatch(s.ctx, stationID, *ev.Alert)
		}
		return
	case stream.EventError:
		err := ev.Err
		var connErr *models.StreamConnectionError
		if !errors.As(err, &connErr) {
			err = &models.StreamConnectionError{StationID: s.stationID, Err: err}
		}
		s.connected = false
		s.lastErr = err
		s.state = StateError
		s.notifyStatusLocked()
		s.logger.Warn("battery stream dropped", zap.String("station_id", s.stationID), zap.Error(err))
	}
	s.mu.Unlock()
}

// InspectBattery fetches one battery on demand. When the session is scoped the
// result goes through the same reconciliation rules as a stream update.
func (s *Session) InspectBattery(ctx context.Context, batteryID string) (models.BatteryState, error) {
	batteryID = strings.TrimSpace(batteryID)
	if batteryID == "" {
		return models.BatteryState{}, &models.DetailFetchError{Err: models.ErrMissingBatteryID}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.BatteryState{}, models.ErrSessionClosed
	}
	stationID := s.stationID
	s.mu.Unlock()

	state, err := s.deps.Details.GetState(ctx, batteryID)
	if err != nil {
		var detailErr *models.DetailFetchError
		if !errors.As(err, &detailErr) {
			err = &models.DetailFetchError{BatteryID: batteryID, Err: err}
		}
		return models.BatteryState{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed && stationID != "" && s.stationID == stationID {
		if change := s.deps.Store.ApplyUpdate(state); change.Mutated() {
			s.notifyStoreLocked()
		}
	}
	return state, nil
}

// ListStations returns the operational stations.
func (s *Session) ListStations(ctx context.Context) ([]models.Station, error) {
	if s.deps.Catalog == nil {
		return nil, errors.New("station catalog not configured")
	}
	return s.deps.Catalog.ListOperationalStations(ctx)
}

// Current returns the batteries of the selected station.
func (s *Session) Current() []models.BatteryState {
	return s.deps.Store.Current()
}

// Snapshot returns a consistent view of the store.
func (s *Session) Snapshot() store.View {
	return s.deps.Store.Snapshot()
}

// Status reports the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statusLocked()
}

// Teardown closes the subscription and stops the session. Events already in
// flight are dropped. Further calls are no-ops.
func (s *Session) Teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.gen++
	s.closeSubscriptionLocked()
	s.connected = false
	s.state = StateIdle
	s.cancel()
	s.notifyStatusLocked()
	s.logger.Info("monitoring session torn down", zap.String("station_id", s.stationID))
}

func (s *Session) currentLocked(gen uint64) bool {
	return !s.closed && s.gen == gen
}

func (s *Session) closeSubscriptionLocked() {
	if s.cancelDial != nil {
		s.cancelDial()
		s.cancelDial = nil
	}
	if s.sub == nil {
		return
	}
	s.sub.Close()
	s.sub = nil
}

func (s *Session) statusLocked() Status {
	st := Status{
		State:        s.state,
		StationID:    s.stationID,
		Connected:    s.connected,
		BatteryCount: s.deps.Store.Len(),
		Version:      s.deps.Store.Version(),
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Session) notifyStoreLocked() {
	if len(s.deps.Observers) == 0 {
		return
	}
	view := s.deps.Store.Snapshot()
	for _, o := range s.deps.Observers {
		o.StoreChanged(view)
	}
}

func (s *Session) notifyStatusLocked() {
	if len(s.deps.Observers) == 0 {
		return
	}
	st := s.statusLocked()
	for _, o := range s.deps.Observers {
		o.StatusChanged(st)
	}
}
