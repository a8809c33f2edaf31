package models

// AlertSeverity is the level carried by an alert event from the stream.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "INFO"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// AlertEvent is a transient alert pushed by the monitoring stream.
type AlertEvent struct {
	Level     AlertSeverity `json:"level"`
	Message   string        `json:"message"`
	BatteryID string        `json:"batteryId,omitempty"`
}
