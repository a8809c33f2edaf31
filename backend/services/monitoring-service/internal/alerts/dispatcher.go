package alerts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"swapwatch/backend/services/monitoring-service/internal/models"
)

// Presentation is how a notification sink should render an alert.
type Presentation string

const (
	PresentError   Presentation = "error"
	PresentWarning Presentation = "warning"
	PresentInfo    Presentation = "info"
)

// PresentationFor maps alert severity to presentation. Unknown levels are info.
func PresentationFor(level models.AlertSeverity) Presentation {
	switch level {
	case models.SeverityCritical:
		return PresentError
	case models.SeverityWarning:
		return PresentWarning
	default:
		return PresentInfo
	}
}

// Notification is what sinks receive.
type Notification struct {
	StationID    string            `json:"stationId"`
	Alert        models.AlertEvent `json:"alert"`
	Presentation Presentation      `json:"presentation"`
	Title        string            `json:"title"`
	ReceivedAt   time.Time         `json:"receivedAt"`
}

// Sink delivers notifications to a user-facing surface.
type Sink interface {
	Notify(ctx context.Context, n Notification) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notification) error

// Notify implements Sink.
func (f SinkFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Dispatcher classifies alerts and forwards them to every sink. It keeps no
// state and never returns sink failures to the caller.
type Dispatcher struct {
	sinks  []Sink
	logger *zap.Logger
	now    func() time.Time
}

// NewDispatcher returns a dispatcher fanning out to sinks. Nil sinks are skipped.
func NewDispatcher(logger *zap.Logger, sinks ...Sink) *Dispatcher {
	active := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			active = append(active, s)
		}
	}
	return &Dispatcher{sinks: active, logger: logger, now: time.Now}
}

// Dispatch forwards alert for stationID to all sinks.
func (d *Dispatcher) Dispatch(ctx context.Context, stationID string, alert models.AlertEvent) {
	n := Notification{
		StationID:    stationID,
		Alert:        alert,
		Presentation: PresentationFor(alert.Level),
		Title:        titleFor(alert.Level),
		ReceivedAt:   d.now().UTC(),
	}
	for _, sink := range d.sinks {
		d.notify(ctx, sink, n)
	}
}

func (d *Dispatcher) notify(ctx context.Context, sink Sink, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("alert sink panicked", zap.String("sink", fmt.Sprintf("%T", sink)), zap.Any("panic", r))
		}
	}()
	if err := sink.Notify(ctx, n); err != nil {
		d.logger.Warn("alert sink failed",
			zap.String("sink", fmt.Sprintf("%T", sink)),
			zap.String("station_id", n.StationID),
			zap.Error(err),
		)
	}
}

func titleFor(level models.AlertSeverity) string {
	if level == "" {
		return string(models.SeverityInfo)
	}
	return string(level)
}
