package stream

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/models"
)

// State is the connection state of a subscription.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	default:
		return "DISCONNECTED"
	}
}

// Subscription is the handle of one open stream, bound to exactly one station.
type Subscription struct {
	stationID string
	listener  Listener
	opts      Options
	logger    *zap.Logger

	state  atomic.Int32
	closed atomic.Bool

	conn      *websocket.Conn
	closeOnce sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func newSubscription(stationID string, listener Listener, opts Options, logger *zap.Logger) *Subscription {
	return &Subscription{
		stationID: stationID,
		listener:  listener,
		opts:      opts,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// StationID returns the station the subscription is scoped to.
func (s *Subscription) StationID() string {
	return s.stationID
}

// State returns the current connection state.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

func (s *Subscription) setState(state State) {
	s.state.Store(int32(state))
}

// Closed reports whether Close was called.
func (s *Subscription) Closed() bool {
	return s.closed.Load()
}

// Done is closed once the read goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close ends the subscription. It is idempotent and never waits for the read
// goroutine, so it is safe to call from inside a listener.
func (s *Subscription) Close() {
	s.closed.Store(true)
	s.shutdown(true)
	s.setState(StateDisconnected)
}

func (s *Subscription) shutdown(sendClose bool) {
	s.closeOnce.Do(func() {
		close(s.stop)
		if s.conn == nil {
			close(s.done)
			return
		}
		if sendClose {
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(s.opts.WriteTimeout))
		}
		_ = s.conn.Close()
	})
}

func (s *Subscription) start(conn *websocket.Conn) {
	s.conn = conn
	s.setState(StateConnected)
	go s.pingPump()
	go s.readPump()
}

func (s *Subscription) readPump() {
	defer close(s.done)

	pongWait := 2 * s.opts.PingInterval
	s.conn.SetReadLimit(s.opts.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	s.emit(Event{Type: EventConnected})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			s.fail(err)
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		ev, err := DecodeEvent(message)
		if err != nil {
			s.logger.Warn("dropping malformed stream event", zap.Error(err))
			continue
		}
		if ev.Type == EventConnected {
			s.logger.Debug("stream handshake acknowledged", zap.ByteString("payload", ev.Payload))
			continue
		}
		s.emit(ev)
	}
}

// fail reports a transport error once, closes the connection and returns the
// subscription to DISCONNECTED.
func (s *Subscription) fail(err error) {
	s.setState(StateError)
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		err = errors.Join(errors.New("stream closed by server"), err)
	}
	s.logger.Warn("battery stream failed", zap.Error(err))
	s.emit(Event{Type: EventError, Err: &models.StreamConnectionError{StationID: s.stationID, Err: err}})
	s.shutdown(false)
	s.setState(StateDisconnected)
}

func (s *Subscription) pingPump() {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.opts.WriteTimeout)); err != nil {
				s.logger.Debug("stream ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (s *Subscription) emit(ev Event) {
	if s.listener == nil || s.closed.Load() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("stream listener panicked", zap.Any("panic", r), zap.String("event", string(ev.Type)))
		}
	}()
	s.listener(s, ev)
}
