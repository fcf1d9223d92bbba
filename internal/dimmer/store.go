package dimmer

import (
	"sync"
	"time"

	"github.com/dokzlo13/dimmerd/internal/units"
)

// entityState is the cached per-entity state plus the in-flight transition.
// The mutex serializes every operation targeting this entity, including
// completion timer callbacks; operations on different entities never
// contend with each other.
type entityState struct {
	mu     sync.Mutex
	target Target

	// Cached bridge state. fetchedAt is zero until the first read.
	brightness float64
	power      bool
	mirek      *int
	ctRange    *units.MirekRange
	fetchedAt  time.Time

	transition *TransitionRecord
	timer      *time.Timer
}

// store holds entity state keyed by resource ID. Entries are created on
// first reference and live until Close.
type store struct {
	mu       sync.Mutex
	entities map[string]*entityState
}

func newStore() *store {
	return &store{entities: make(map[string]*entityState)}
}

func (s *store) get(t Target) *entityState {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.entities[t.ID]
	if !ok {
		st = &entityState{target: t}
		s.entities[t.ID] = st
	}
	return st
}

// close stops all pending completion timers and drops all state.
func (s *store) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.entities {
		st.mu.Lock()
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
		st.transition = nil
		st.mu.Unlock()
	}
	s.entities = make(map[string]*entityState)
}
