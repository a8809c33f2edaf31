package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapwatch/backend/services/monitoring-service/internal/alerts"
	"swapwatch/backend/services/monitoring-service/internal/models"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestAlertPublisherNotify(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewAlertPublisher(pub, 0)
	at := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)

	err := sink.Notify(context.Background(), alerts.Notification{
		StationID:    "S1",
		Alert:        models.AlertEvent{Level: models.SeverityCritical, Message: "overheat", BatteryID: "b1"},
		Presentation: alerts.PresentError,
		ReceivedAt:   at,
	})
	require.NoError(t, err)
	assert.Equal(t, "monitoring:alerts:S1", pub.channel)

	var msg AlertMessage
	require.NoError(t, json.Unmarshal(pub.payload, &msg))
	assert.Equal(t, AlertMessage{
		StationID:    "S1",
		BatteryID:    "b1",
		Level:        "CRITICAL",
		Message:      "overheat",
		Presentation: "error",
		ReceivedAt:   at,
	}, msg)
}

func TestAlertPublisherError(t *testing.T) {
	sink := NewAlertPublisher(&fakePublisher{err: errors.New("connection refused")}, time.Second)
	err := sink.Notify(context.Background(), alerts.Notification{StationID: "S1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
