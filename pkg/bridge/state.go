package bridge

import "sync"

// Transition is the result of applying one request to a connection.
type Transition struct {
	State    ConnectionState // state after the request was applied
	Action   GameAction
	Discrete bool // an ActionEvent should be queued
}

// StateStore holds the gesture state of every open connection.
// One mutex covers the whole map; every operation is O(1).
type StateStore struct {
	mu     sync.Mutex
	states map[string]*ConnectionState
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{
		states: make(map[string]*ConnectionState),
	}
}

// UpsertDefault registers id with a default state if it is not present.
func (s *StateStore) UpsertDefault(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[id]; !ok {
		s.states[id] = &ConnectionState{}
	}
}

// Remove forgets id. Removing an unknown id is a no-op.
func (s *StateStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
}

// Get returns a copy of the state for id.
func (s *StateStore) Get(id string) (ConnectionState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return ConnectionState{}, false
	}
	return *st, true
}

// Len returns the number of registered connections.
func (s *StateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Apply runs one request against the state for id under the store lock.
// It reports false when the request is discarded: an unknown tag, a peak
// whose pressure does not exceed threshold, or an unregistered id. In that
// case nothing changed and nothing should be emitted.
func (s *StateStore) Apply(id string, req Request, threshold float64) (Transition, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.states[id]
	if !ok {
		return Transition{}, false
	}

	var tr Transition
	switch req.Action {
	case TagPeakLeft, TagPeakRight:
		if !passes(req.Pressure, threshold) {
			return Transition{}, false
		}
		move := MoveLeft
		if req.Action == TagPeakRight {
			move = MoveRight
		}
		st.Movement, st.HasMovement = move, true
		st.MovementPressure = req.Pressure
		tr.Action, tr.Discrete = move, true

	case TagPeakShoot:
		if !passes(req.Pressure, threshold) {
			return Transition{}, false
		}
		st.Shooting = true
		st.ShootPressure = req.Pressure
		tr.Action, tr.Discrete = Shoot, true

	case TagStop:
		*st = ConnectionState{}
		tr.Action, tr.Discrete = Idle, true

	case TagStopMovement:
		st.Movement, st.HasMovement = 0, false
		st.MovementPressure = 0
		tr.Action, tr.Discrete = Idle, true

	case TagStopShooting:
		// Shooting stops quietly: the snapshot carries it, no discrete event.
		st.Shooting = false
		st.ShootPressure = 0
		tr.Action = Idle

	default:
		return Transition{}, false
	}

	tr.State = *st
	return tr, true
}
