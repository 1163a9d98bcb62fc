package executor

import "sync/atomic"

// State tracks the spout executor's activation state machine (spec.md §4.7,
// §3 ExecutorState) — the fields the main cycle reads and mutates every
// iteration.
type State struct {
	active     atomic.Bool
	lastActive atomic.Bool
	openCalled atomic.Bool
}

// SetActive sets the externally-toggled desired activation state.
func (s *State) SetActive(active bool) {
	s.active.Store(active)
}

// IsActive reports the current desired activation state.
func (s *State) IsActive() bool {
	return s.active.Load()
}

// observeTransition returns (becameActive, becameInactive) by comparing the
// current active flag to lastActive, then updates lastActive.
func (s *State) observeTransition() (becameActive, becameInactive bool) {
	active := s.active.Load()
	last := s.lastActive.Load()
	becameActive = active && !last
	becameInactive = !active && last
	s.lastActive.Store(active)
	return
}

func (s *State) markOpened() { s.openCalled.Store(true) }

func (s *State) wasOpened() bool { return s.openCalled.Load() }
