package session

// State is the lifecycle of one multichain action.
type State string

const (
	StateIdle      State = "Idle"
	StatePreparing State = "Preparing"
	StateSigning   State = "Signing"
	StatePending   State = "Pending"
	StateSettled   State = "Settled"
)

// Busy reports whether an action is in flight.
func (s State) Busy() bool {
	return s == StatePreparing || s == StateSigning || s == StatePending
}

var transitions = map[State][]State{
	StateIdle:      {StatePreparing},
	StatePreparing: {StateSigning, StateIdle},
	StateSigning:   {StatePending, StateIdle},
	StatePending:   {StateSettled},
	StateSettled:   {StateIdle},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
