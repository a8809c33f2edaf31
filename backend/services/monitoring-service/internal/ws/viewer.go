package ws

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Viewer is one UI websocket watching the monitoring session. Viewers only
// receive; anything they send is discarded.
type Viewer struct {
	id           string
	conn         *websocket.Conn
	send         chan []byte
	logger       *zap.Logger
	writeTimeout time.Duration
	pongWait     time.Duration
	readLimit    int64
	onClose      func(id string)
}

// NewViewer wraps an upgraded connection.
func NewViewer(id string, conn *websocket.Conn, opts Options, logger *zap.Logger, onClose func(string)) *Viewer {
	opts = opts.withDefaults()
	return &Viewer{
		id:           id,
		conn:         conn,
		send:         make(chan []byte, opts.SendBuffer),
		logger:       logger,
		writeTimeout: opts.WriteTimeout,
		pongWait:     2 * opts.PingInterval,
		readLimit:    opts.ReadLimit,
		onClose:      onClose,
	}
}

// ID returns the viewer identifier.
func (v *Viewer) ID() string {
	return v.id
}

// Start runs the write pump in the background and blocks in the read pump
// until the peer goes away.
func (v *Viewer) Start(ctx context.Context) {
	go v.writePump(ctx)
	v.readPump()
}

func (v *Viewer) readPump() {
	defer v.cleanup()
	v.conn.SetReadLimit(v.readLimit)
	_ = v.conn.SetReadDeadline(time.Now().Add(v.pongWait))
	v.conn.SetPongHandler(func(string) error {
		return v.conn.SetReadDeadline(time.Now().Add(v.pongWait))
	})

	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				v.logger.Info("viewer read closed", zap.String("viewer_id", v.id), zap.Error(err))
			}
			return
		}
	}
}

func (v *Viewer) writePump(ctx context.Context) {
	defer v.conn.Close()
	for {
		select {
		case <-ctx.Done():
			_ = v.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case msg, ok := <-v.send:
			if !ok {
				_ = v.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := v.write(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}

// Send enqueues a frame. A full buffer drops the frame; the next snapshot
// carries a higher version so the viewer catches up.
func (v *Viewer) Send(msg []byte) {
	select {
	case v.send <- msg:
	default:
		v.logger.Warn("dropping viewer frame, buffer full", zap.String("viewer_id", v.id))
	}
}

// Ping sends a keepalive control frame. It is safe to call alongside the write pump.
func (v *Viewer) Ping() error {
	return v.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(v.writeTimeout))
}

func (v *Viewer) write(messageType int, data []byte) error {
	_ = v.conn.SetWriteDeadline(time.Now().Add(v.writeTimeout))
	return v.conn.WriteMessage(messageType, data)
}

// cleanup unregisters first so no broadcaster holds the viewer when send closes.
func (v *Viewer) cleanup() {
	if v.onClose != nil {
		v.onClose(v.id)
	}
	close(v.send)
}
