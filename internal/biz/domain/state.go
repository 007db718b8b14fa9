package domain

// SessionState is the connection state of an account session
type SessionState int

const (
	StateIdle SessionState = iota
	StateConnecting
	StateAuthenticating
	StateStreaming
	StateReconnecting
	StateFailed
	StateClosed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no automatic transition leaves this state
func (s SessionState) IsTerminal() bool {
	return s == StateFailed || s == StateClosed
}
