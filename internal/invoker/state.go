package invoker

// State is the invoker's position in its lifecycle.
type State int

const (
	StateDisconnected State = iota
	StateConnected
	StateTemplateBound
	StateInvoked
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnected:
		return "Connected"
	case StateTemplateBound:
		return "TemplateBound"
	case StateInvoked:
		return "Invoked"
	default:
		return "Unknown"
	}
}

// hasDocument reports whether a call document is bound in s.
func (s State) hasDocument() bool {
	return s == StateTemplateBound || s == StateInvoked
}
