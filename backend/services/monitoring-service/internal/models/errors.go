package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNoStationSelected is returned by operations that need a scoped session.
	ErrNoStationSelected = errors.New("monitoring: no station selected")
	// ErrSessionClosed is returned once the session has been torn down.
	ErrSessionClosed = errors.New("monitoring: session closed")
	// ErrMissingToken is reported when the auth collaborator has no credential.
	ErrMissingToken = errors.New("monitoring: no access token available")
	// ErrSuperseded is returned by a load whose result was discarded because a
	// newer selection or a teardown happened while it ran.
	ErrSuperseded = errors.New("monitoring: superseded by a newer selection")
)

// SnapshotError reports a failed authoritative load for a station. It is
// recoverable through a manual refresh and never clears existing data.
type SnapshotError struct {
	StationID string
	Status    int
	Err       error
}

func (e *SnapshotError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("load battery states for station %s: upstream status %d: %v", e.StationID, e.Status, e.Err)
	}
	return fmt.Sprintf("load battery states for station %s: %v", e.StationID, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// StreamConnectionError reports a transport or auth failure on the push channel.
type StreamConnectionError struct {
	StationID string
	Err       error
}

func (e *StreamConnectionError) Error() string {
	return fmt.Sprintf("battery stream for station %s: %v", e.StationID, e.Err)
}

func (e *StreamConnectionError) Unwrap() error { return e.Err }

// MalformedEventError reports one stream event that could not be decoded. Only
// that event is dropped.
type MalformedEventError struct {
	Event string
	Err   error
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %q event: %v", e.Event, e.Err)
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// DetailFetchError reports a failed on-demand battery refresh.
type DetailFetchError struct {
	BatteryID string
	Status    int
	Err       error
}

func (e *DetailFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch battery %s: upstream status %d: %v", e.BatteryID, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch battery %s: %v", e.BatteryID, e.Err)
}

func (e *DetailFetchError) Unwrap() error { return e.Err }
