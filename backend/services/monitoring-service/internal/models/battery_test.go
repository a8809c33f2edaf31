package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatteryStateDecodesBackendPayload(t *testing.T) {
	raw := `{
		"batteryId": "b1",
		"serialNumber": "SN-001",
		"batteryType": "LFP-48V",
		"currentStationId": "S1",
		"status": "CHARGING",
		"chargeLevel": 64.5,
		"temperature": 31.2,
		"voltage": 51.8,
		"current": 12.4,
		"powerKwh": 2.1,
		"stateOfHealth": 93,
		"abnormal": true,
		"abnormalReason": "cell imbalance",
		"alertLevel": "WARNING",
		"estimatedMinutesToFull": 42
	}`

	var state BatteryState
	require.NoError(t, json.Unmarshal([]byte(raw), &state))

	assert.Equal(t, "b1", state.BatteryID)
	assert.Equal(t, StatusCharging, state.Status)
	assert.True(t, state.IsCharging())
	assert.True(t, state.NeedsAttention())
	assert.Equal(t, "cell imbalance", state.Reason())
	require.NotNil(t, state.EstimatedMinutesToFull)
	assert.Equal(t, 42, *state.EstimatedMinutesToFull)
}

func TestBatteryStateValidate(t *testing.T) {
	_, err := BatteryState{}.Validate()
	require.ErrorIs(t, err, ErrMissingBatteryID)

	warnings, err := BatteryState{BatteryID: "b1", ChargeLevel: 120, StateOfHealth: -1, Status: "LOST"}.Validate()
	require.NoError(t, err)
	assert.Len(t, warnings, 3)

	warnings, err = BatteryState{BatteryID: "b1", ChargeLevel: 50, StateOfHealth: 90, Status: StatusFull}.Validate()
	require.NoError(t, err)
	assert.Empty(t, warnings)
}

func TestBatteryStateCloneDoesNotShareOptionals(t *testing.T) {
	reason := "overheat"
	minutes := 10
	original := BatteryState{BatteryID: "b1", AbnormalReason: &reason, EstimatedMinutesToFull: &minutes}

	clone := original.Clone()
	*clone.AbnormalReason = "changed"
	*clone.EstimatedMinutesToFull = 99

	assert.Equal(t, "overheat", original.Reason())
	assert.Equal(t, 10, *original.EstimatedMinutesToFull)
}

func TestNeedsAttentionTreatsEmptyLevelAsOK(t *testing.T) {
	assert.False(t, BatteryState{BatteryID: "b1"}.NeedsAttention())
	assert.False(t, BatteryState{BatteryID: "b1", AlertLevel: AlertOK}.NeedsAttention())
	assert.True(t, BatteryState{BatteryID: "b1", AlertLevel: AlertCritical}.NeedsAttention())
}
