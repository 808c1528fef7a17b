package bridge

import "fmt"

// State represents the lifecycle state of a call session
type State int

const (
	// StateAwaitingStart is the initial state, before the carrier names the stream
	StateAwaitingStart State = iota
	// StateStreaming is after the first start event
	StateStreaming
	// StateStopped is the final state
	StateStopped
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateAwaitingStart:
		return "AwaitingStart"
	case StateStreaming:
		return "Streaming"
	case StateStopped:
		return "Stopped"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

var validTransitions = map[State][]State{
	StateAwaitingStart: {StateStreaming, StateStopped},
	StateStreaming:     {StateStopped},
	StateStopped:       {},
}

// CanTransitionTo checks if a transition from current state to next state is valid
func (s State) CanTransitionTo(next State) bool {
	for _, state := range validTransitions[s] {
		if state == next {
			return true
		}
	}
	return false
}

