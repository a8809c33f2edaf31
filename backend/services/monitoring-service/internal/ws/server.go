package ws

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/session"
	"swapwatch/backend/services/monitoring-service/internal/store"
)

// Source provides the state a new viewer starts from.
type Source interface {
	Snapshot() store.View
	Status() session.Status
}

// Server upgrades UI requests to viewer websockets.
type Server struct {
	hub      *Hub
	source   Source
	opts     Options
	logger   *zap.Logger
	upgrader websocket.Upgrader
	// base bounds every viewer; cancelling it closes them all.
	base context.Context
}

// NewServer builds the viewer endpoint. Viewers are closed when ctx is done.
func NewServer(ctx context.Context, hub *Hub, source Source, opts Options, logger *zap.Logger) *Server {
	return &Server{
		hub:    hub,
		source: source,
		opts:   opts.withDefaults(),
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		base: ctx,
	}
}

// HandleWS serves GET /api/battery-monitoring/ws.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("viewer upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(s.base)
	id := uuid.NewString()
	viewer := NewViewer(id, conn, s.opts, s.logger, func(id string) {
		s.hub.Remove(id)
		cancel()
	})

	// Register before reading the initial state so no mutation is missed. A
	// broadcast can precede the initial snapshot; clients order them by version.
	s.hub.Add(viewer)
	if msg, err := encodeFrame(FrameSnapshot, s.source.Snapshot()); err == nil {
		viewer.Send(msg)
	}
	if msg, err := encodeFrame(FrameStatus, s.source.Status()); err == nil {
		viewer.Send(msg)
	}

	go viewer.Start(ctx)
	s.logger.Info("viewer connected", zap.String("viewer_id", id), zap.String("remote_addr", r.RemoteAddr))
}
