package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"swapwatch/backend/services/monitoring-service/internal/alerts"
)

// Publisher is the subset of the redis client used for alert fan-out.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// AlertMessage is the JSON published for each alert.
type AlertMessage struct {
	StationID    string    `json:"station_id"`
	BatteryID    string    `json:"battery_id,omitempty"`
	Level        string    `json:"level"`
	Message      string    `json:"message"`
	Presentation string    `json:"presentation"`
	ReceivedAt   time.Time `json:"received_at"`
}

// AlertPublisher publishes alert notifications on a per-station channel so
// other dashboards can subscribe.
type AlertPublisher struct {
	client  Publisher
	timeout time.Duration
}

// NewAlertPublisher returns a redis alert sink.
func NewAlertPublisher(client Publisher, timeout time.Duration) *AlertPublisher {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &AlertPublisher{client: client, timeout: timeout}
}

// Channel returns the pub/sub channel for a station.
func Channel(stationID string) string {
	return fmt.Sprintf("monitoring:alerts:%s", stationID)
}

// Notify implements alerts.Sink.
func (p *AlertPublisher) Notify(ctx context.Context, n alerts.Notification) error {
	data, err := json.Marshal(AlertMessage{
		StationID:    n.StationID,
		BatteryID:    n.Alert.BatteryID,
		Level:        string(n.Alert.Level),
		Message:      n.Alert.Message,
		Presentation: string(n.Presentation),
		ReceivedAt:   n.ReceivedAt,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, Channel(n.StationID), data).Err(); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}
