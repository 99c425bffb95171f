package workflow

import "fmt"

// State is where the session is in the capture → annotate → upload pipeline.
type State int

const (
	StateEmpty State = iota
	StateCapturing
	StateCaptured
	StateAnnotating
	StateAnnotated
	StateUploading
)

var stateNames = [...]string{
	StateEmpty:      "empty",
	StateCapturing:  "capturing",
	StateCaptured:   "captured",
	StateAnnotating: "annotating",
	StateAnnotated:  "annotated",
	StateUploading:  "uploading",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("workflow: unknown state %q", text)
}

// Busy reports whether a device call or upload is in flight.
func (s State) Busy() bool {
	switch s {
	case StateCapturing, StateCaptured, StateAnnotating, StateUploading:
		return true
	default:
		return false
	}
}

// canTransition encodes the session state machine. Reset to Empty is always
// allowed and does not go through here.
func canTransition(from, to State) bool {
	switch from {
	case StateEmpty:
		return to == StateCapturing
	case StateCapturing:
		return to == StateCaptured || to == StateEmpty
	case StateCaptured:
		return to == StateAnnotating
	case StateAnnotating:
		return to == StateAnnotated || to == StateEmpty
	case StateAnnotated:
		return to == StateUploading || to == StateCapturing
	case StateUploading:
		return to == StateEmpty || to == StateAnnotated
	default:
		return false
	}
}
