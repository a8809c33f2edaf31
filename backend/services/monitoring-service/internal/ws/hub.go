package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/alerts"
	"swapwatch/backend/services/monitoring-service/internal/session"
	"swapwatch/backend/services/monitoring-service/internal/store"
)

// Frame event names sent to viewers.
const (
	FrameSnapshot = "snapshot"
	FrameToast    = "toast"
	FrameStatus   = "status"
)

// Frame is the envelope of every message sent to a viewer.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Options tunes viewer connections.
type Options struct {
	PingInterval time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
	SendBuffer   int
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 4096
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = 32
	}
	return o
}

// Hub tracks viewers and fans session changes out to them. It implements
// session.Observer and alerts.Sink.
type Hub struct {
	mu           sync.RWMutex
	viewers      map[string]*Viewer
	pingInterval time.Duration
	logger       *zap.Logger
}

var (
	_ session.Observer = (*Hub)(nil)
	_ alerts.Sink      = (*Hub)(nil)
)

// NewHub builds an empty hub.
func NewHub(pingInterval time.Duration, logger *zap.Logger) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		viewers:      make(map[string]*Viewer),
		pingInterval: pingInterval,
		logger:       logger,
	}
}

// Add registers a viewer.
func (h *Hub) Add(v *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewers[v.ID()] = v
}

// Remove unregisters a viewer.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.viewers, id)
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Broadcast encodes one frame and queues it on every viewer.
func (h *Hub) Broadcast(event string, data interface{}) {
	msg, err := encodeFrame(event, data)
	if err != nil {
		h.logger.Error("encode viewer frame", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, v := range h.viewers {
		v.Send(msg)
	}
}

// StoreChanged implements session.Observer.
func (h *Hub) StoreChanged(view store.View) {
	h.Broadcast(FrameSnapshot, view)
}

// StatusChanged implements session.Observer.
func (h *Hub) StatusChanged(status session.Status) {
	h.Broadcast(FrameStatus, status)
}

// Notify implements alerts.Sink.
func (h *Hub) Notify(_ context.Context, n alerts.Notification) error {
	h.Broadcast(FrameToast, n)
	return nil
}

// Start pings viewers until ctx is done.
func (h *Hub) Start(ctx context.Context) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.RLock()
			for id, v := range h.viewers {
				if err := v.Ping(); err != nil {
					h.logger.Debug("viewer ping failed", zap.String("viewer_id", id), zap.Error(err))
				}
			}
			h.mu.RUnlock()
		}
	}
}

func encodeFrame(event string, data interface{}) ([]byte, error) {
	return json.Marshal(Frame{Event: event, Data: data})
}
