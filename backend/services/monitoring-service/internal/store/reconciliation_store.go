package store

import (
	"sync"

	"swapwatch/backend/services/monitoring-service/internal/models"
)

// Change names the reconciliation rule that an update triggered.
type Change int

const (
	Ignored Change = iota
	Inserted
	Replaced
	Evicted
)

func (c Change) String() string {
	switch c {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case Evicted:
		return "evicted"
	default:
		return "ignored"
	}
}

// Mutated reports whether the change altered the store contents.
func (c Change) Mutated() bool {
	return c != Ignored
}

// ReconciliationStore holds the battery states of the station in scope. Every
// stored record has CurrentStationID equal to the scope; batteryId is unique.
// One writer (the monitoring session) mutates it, any number of readers may call
// Current concurrently.
type ReconciliationStore struct {
	mu      sync.RWMutex
	scope   string
	order   []string
	entries map[string]models.BatteryState
	version uint64
}

// New returns an empty, unscoped store.
func New() *ReconciliationStore {
	return &ReconciliationStore{entries: make(map[string]models.BatteryState)}
}

// Reset empties the store and binds it to stationID.
func (s *ReconciliationStore) Reset(stationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = stationID
	s.order = nil
	s.entries = make(map[string]models.BatteryState)
	s.version++
}

// ApplySnapshot replaces the contents with states. Records reported at another
// station are dropped; duplicate ids keep the last record at the first position.
func (s *ReconciliationStore) ApplySnapshot(states []models.BatteryState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make(map[string]models.BatteryState, len(states))
	order := make([]string, 0, len(states))
	for _, st := range states {
		if st.BatteryID == "" || st.CurrentStationID != s.scope {
			continue
		}
		if _, seen := entries[st.BatteryID]; !seen {
			order = append(order, st.BatteryID)
		}
		entries[st.BatteryID] = st.Clone()
	}
	s.entries = entries
	s.order = order
	s.version++
}

// ApplyUpdate merges one full battery record. An update never patches fields:
// a battery still at the scoped station is replaced wholesale, a battery that
// moved away is evicted, and batteries of other stations are ignored.
func (s *ReconciliationStore) ApplyUpdate(update models.BatteryState) Change {
	if update.BatteryID == "" {
		return Ignored
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sameStation := update.CurrentStationID == s.scope
	_, exists := s.entries[update.BatteryID]

	switch {
	case exists && !sameStation:
		delete(s.entries, update.BatteryID)
		s.removeFromOrder(update.BatteryID)
		s.version++
		return Evicted
	case exists:
		s.entries[update.BatteryID] = update.Clone()
		s.version++
		return Replaced
	case sameStation:
		s.entries[update.BatteryID] = update.Clone()
		s.order = append(s.order, update.BatteryID)
		s.version++
		return Inserted
	default:
		return Ignored
	}
}

func (s *ReconciliationStore) removeFromOrder(batteryID string) {
	for i, id := range s.order {
		if id == batteryID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Current returns a copy of the stored states in display order.
func (s *ReconciliationStore) Current() []models.BatteryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.BatteryState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.entries[id].Clone())
	}
	return out
}

// Get returns one stored state.
func (s *ReconciliationStore) Get(batteryID string) (models.BatteryState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.entries[batteryID]
	if !ok {
		return models.BatteryState{}, false
	}
	return st.Clone(), true
}

// Scope returns the station id the store is bound to.
func (s *ReconciliationStore) Scope() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

// Len returns the number of stored batteries.
func (s *ReconciliationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Version increases on every mutation.
func (s *ReconciliationStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// View is a consistent read of scope, version and contents.
type View struct {
	StationID string                `json:"stationId"`
	Version   uint64                `json:"version"`
	Batteries []models.BatteryState `json:"batteries"`
}

// Snapshot returns scope, version and states under a single read lock.
func (s *ReconciliationStore) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	batteries := make([]models.BatteryState, 0, len(s.order))
	for _, id := range s.order {
		batteries = append(batteries, s.entries[id].Clone())
	}
	return View{StationID: s.scope, Version: s.version, Batteries: batteries}
}
