package session

// State is the connection state of a Transport.
type State uint8

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateOpen:
		return "Open"
	case StateReconnecting:
		return "Reconnecting"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// canTransition reports whether from → to is a legal move.
func canTransition(from, to State) bool {
	switch from {
	case StateConnecting:
		return to == StateOpen || to == StateClosed
	case StateOpen:
		return to == StateReconnecting || to == StateClosed
	case StateReconnecting:
		return to == StateOpen || to == StateClosed
	}
	return false
}
