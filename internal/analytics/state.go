package analytics

import "sync"

// TileState is the observable lifecycle state of one (location, metric) tile.
type TileState string

const (
	StateIdle    TileState = "idle"
	StateLoading TileState = "loading"
	StateCached  TileState = "cached"
	StateFetched TileState = "fetched"
	StateError   TileState = "error"
)

// StateStore tracks per-tile state in one structured place instead of
// ad-hoc mutable maps scattered across callers.
type StateStore struct {
	mu     sync.RWMutex
	states map[string]TileState
}

// NewStateStore creates an empty StateStore.
func NewStateStore() *StateStore {
	return &StateStore{states: make(map[string]TileState)}
}

// Set records the state for a tile key.
func (s *StateStore) Set(key string, state TileState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[key] = state
}

// Get returns the state for a tile key; unseen keys are Idle.
func (s *StateStore) Get(key string) TileState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if st, ok := s.states[key]; ok {
		return st
	}
	return StateIdle
}

// Snapshot returns a copy of all known tile states.
func (s *StateStore) Snapshot() map[string]TileState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]TileState, len(s.states))
	for k, v := range s.states {
		out[k] = v
	}
	return out
}
