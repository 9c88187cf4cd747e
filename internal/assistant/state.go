package assistant

import (
	"sync/atomic"

	"eva/internal/display"
)

// state holds the run flags. Only the assistant writes them; anyone may
// read a snapshot.
type state struct {
	running atomic.Bool
	gesture atomic.Bool
	speech  atomic.Bool
	object  atomic.Bool
}

func (s *state) snapshot() display.Status {
	return display.Status{
		Running: s.running.Load(),
		Gesture: s.gesture.Load(),
		Speech:  s.speech.Load(),
		Object:  s.object.Load(),
	}
}

func (s *state) clear() {
	s.running.Store(false)
	s.gesture.Store(false)
	s.speech.Store(false)
	s.object.Store(false)
}
