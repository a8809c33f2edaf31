package stream

import (
	"encoding/json"
	"errors"
	"fmt"

	"swapwatch/backend/services/monitoring-service/internal/models"
)

// EventType names a push event.
type EventType string

const (
	EventConnected     EventType = "connected"
	EventBatteryUpdate EventType = "battery-update"
	EventAlert         EventType = "alert"
	EventError         EventType = "error"
)

// Event is one delivery to the subscription listener. Exactly one of Battery,
// Alert or Err is set for battery-update, alert and error events.
type Event struct {
	Type    EventType
	Battery *models.BatteryState
	Alert   *models.AlertEvent
	Payload json.RawMessage
	Err     error
}

// frame is the wire envelope: one text message per event.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// DecodeEvent parses one wire frame. Failures are *models.MalformedEventError.
func DecodeEvent(raw []byte) (Event, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Event{}, &models.MalformedEventError{Event: "", Err: err}
	}

	switch EventType(f.Event) {
	case EventConnected:
		return Event{Type: EventConnected, Payload: f.Data}, nil
	case EventBatteryUpdate:
		var state models.BatteryState
		if err := decodeData(f.Data, &state); err != nil {
			return Event{}, &models.MalformedEventError{Event: f.Event, Err: err}
		}
		if _, err := state.Validate(); err != nil {
			return Event{}, &models.MalformedEventError{Event: f.Event, Err: err}
		}
		return Event{Type: EventBatteryUpdate, Battery: &state}, nil
	case EventAlert:
		var alert models.AlertEvent
		if err := decodeData(f.Data, &alert); err != nil {
			return Event{}, &models.MalformedEventError{Event: f.Event, Err: err}
		}
		return Event{Type: EventAlert, Alert: &alert}, nil
	default:
		return Event{}, &models.MalformedEventError{Event: f.Event, Err: fmt.Errorf("unknown event type")}
	}
}

func decodeData(data json.RawMessage, target interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return errors.New("missing data")
	}
	// The backend sometimes double-encodes payloads as a JSON string.
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return err
		}
		data = json.RawMessage(inner)
	}
	return json.Unmarshal(data, target)
}
