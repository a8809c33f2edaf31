package models

import (
	"errors"
	"fmt"
)

// BatteryStatus is the lifecycle status reported by the battery backend.
type BatteryStatus string

const (
	StatusFull        BatteryStatus = "FULL"
	StatusInUse       BatteryStatus = "IN_USE"
	StatusCharging    BatteryStatus = "CHARGING"
	StatusMaintenance BatteryStatus = "MAINTENANCE"
	StatusFaulty      BatteryStatus = "FAULTY"
	StatusRetired     BatteryStatus = "RETIRED"
)

// Known reports whether s is one of the documented statuses.
func (s BatteryStatus) Known() bool {
	switch s {
	case StatusFull, StatusInUse, StatusCharging, StatusMaintenance, StatusFaulty, StatusRetired:
		return true
	}
	return false
}

// AlertLevel is the per-battery health classification.
type AlertLevel string

const (
	AlertOK       AlertLevel = "OK"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// BatteryState is one battery's live telemetry as reported for a station.
type BatteryState struct {
	BatteryID              string        `json:"batteryId"`
	SerialNumber           string        `json:"serialNumber"`
	BatteryType            string        `json:"batteryType"`
	CurrentStationID       string        `json:"currentStationId"`
	Status                 BatteryStatus `json:"status"`
	ChargeLevel            float64       `json:"chargeLevel"`
	Temperature            float64       `json:"temperature"`
	Voltage                float64       `json:"voltage"`
	Current                float64       `json:"current"`
	PowerKWh               float64       `json:"powerKwh"`
	StateOfHealth          float64       `json:"stateOfHealth"`
	Abnormal               bool          `json:"abnormal"`
	AbnormalReason         *string       `json:"abnormalReason,omitempty"`
	AlertLevel             AlertLevel    `json:"alertLevel"`
	EstimatedMinutesToFull *int          `json:"estimatedMinutesToFull,omitempty"`
}

// ErrMissingBatteryID is returned by Validate for records without a key.
var ErrMissingBatteryID = errors.New("battery state: batteryId is required")

// Validate rejects records that cannot be keyed. Range problems are returned as
// warnings; the record itself is still usable.
func (b BatteryState) Validate() (warnings []string, err error) {
	if b.BatteryID == "" {
		return nil, ErrMissingBatteryID
	}
	if b.ChargeLevel < 0 || b.ChargeLevel > 100 {
		warnings = append(warnings, fmt.Sprintf("chargeLevel %.1f outside [0,100]", b.ChargeLevel))
	}
	if b.StateOfHealth < 0 || b.StateOfHealth > 100 {
		warnings = append(warnings, fmt.Sprintf("stateOfHealth %.1f outside [0,100]", b.StateOfHealth))
	}
	if b.Status != "" && !b.Status.Known() {
		warnings = append(warnings, fmt.Sprintf("unknown status %q", b.Status))
	}
	return warnings, nil
}

// IsCharging reports a charging battery.
func (b BatteryState) IsCharging() bool {
	return b.Status == StatusCharging
}

// NeedsAttention is true for abnormal batteries or any non-OK alert level.
func (b BatteryState) NeedsAttention() bool {
	return b.Abnormal || (b.AlertLevel != "" && b.AlertLevel != AlertOK)
}

// Reason returns the abnormal reason or an empty string.
func (b BatteryState) Reason() string {
	if b.AbnormalReason == nil {
		return ""
	}
	return *b.AbnormalReason
}

// Clone returns a deep copy so callers never share optional pointers with the store.
func (b BatteryState) Clone() BatteryState {
	out := b
	if b.AbnormalReason != nil {
		reason := *b.AbnormalReason
		out.AbnormalReason = &reason
	}
	if b.EstimatedMinutesToFull != nil {
		minutes := *b.EstimatedMinutesToFull
		out.EstimatedMinutesToFull = &minutes
	}
	return out
}
