package session

import (
	"context"

	"swapwatch/backend/services/monitoring-service/internal/models"
	"swapwatch/backend/services/monitoring-service/internal/store"
	"swapwatch/backend/services/monitoring-service/internal/stream"
)

// SnapshotLoader fetches the authoritative battery list of a station.
type SnapshotLoader interface {
	LoadStates(ctx context.Context, stationID string) ([]models.BatteryState, error)
}

// DetailFetcher fetches the current state of one battery.
type DetailFetcher interface {
	GetState(ctx context.Context, batteryID string) (models.BatteryState, error)
}

// StationCatalog lists the stations a viewer may select.
type StationCatalog interface {
	ListOperationalStations(ctx context.Context) ([]models.Station, error)
}

// AlertDispatcher forwards stream alerts to notification sinks.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, stationID string, alert models.AlertEvent)
}

// Subscription is an open push channel.
type Subscription interface {
	Close()
}

// StreamOpener opens a station subscription delivering events to onEvent.
type StreamOpener interface {
	Open(ctx context.Context, stationID, token string, onEvent func(stream.Event)) (Subscription, error)
}

// Observer is told about store mutations and lifecycle changes. Calls happen
// with the session lock held and must not block.
type Observer interface {
	StoreChanged(view store.View)
	StatusChanged(status Status)
}

// NewStreamOpener adapts a stream client to StreamOpener.
func NewStreamOpener(client *stream.Client) StreamOpener {
	return streamClientOpener{client: client}
}

type streamClientOpener struct {
	client *stream.Client
}

func (o streamClientOpener) Open(ctx context.Context, stationID, token string, onEvent func(stream.Event)) (Subscription, error) {
	sub, err := o.client.Open(ctx, stationID, token, func(_ *stream.Subscription, ev stream.Event) {
		onEvent(ev)
	})
	if err != nil {
		return nil, err
	}
	return sub, nil
}
