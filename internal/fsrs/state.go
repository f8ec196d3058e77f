package fsrs

import (
	"encoding"
	"fmt"
)

// State is the learning stage of a card.
//
// The numeric values match the go-fsrs reference (New=0 .. Relearning=3) so
// persisted states stay comparable across implementations.
type State int

const (
	StateNew        State = iota // Created, never reviewed.
	StateLearning                // In initial learning steps.
	StateReview                  // Graduated to the long-term review cycle.
	StateRelearning              // Forgotten from Review, relearning.
)

var (
	stateNames = [...]string{
		StateNew:        "New",
		StateLearning:   "Learning",
		StateReview:     "Review",
		StateRelearning: "Relearning",
	}

	stateByName = map[string]State{
		"New":        StateNew,
		"Learning":   StateLearning,
		"Review":     StateReview,
		"Relearning": StateRelearning,
	}
)

var (
	_ fmt.Stringer             = State(0)
	_ encoding.TextMarshaler   = State(0)
	_ encoding.TextUnmarshaler = (*State)(nil)
)

// IsValid reports whether s is one of the four defined states.
func (s State) IsValid() bool {
	return s >= StateNew && s <= StateRelearning
}

// String returns the state's name, or "State(n)" for invalid values.
func (s State) String() string {
	if s.IsValid() {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("invalid card state: %d", int(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	v, ok := stateByName[string(text)]
	if !ok {
		return fmt.Errorf("invalid card state: %q", text)
	}
	*s = v
	return nil
}
