package session

// State is the controller lifecycle state.
type State int32

const (
	// StateDisconnected is the initial state, also reached after a
	// fatal error stops retrying.
	StateDisconnected State = iota

	// StateAuthenticating resolves cloud credentials.
	StateAuthenticating

	// StateOpening dials the WebSocket.
	StateOpening

	// StateLoggingIn authenticates on the open socket.
	StateLoggingIn

	// StateSyncing loads the inventory snapshots.
	StateSyncing

	// StateConnected is fully operational.
	StateConnected

	// StateReconnecting waits out the backoff between attempts.
	StateReconnecting

	// StateStopped is reached only through Stop().
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateOpening:
		return "OPENING"
	case StateLoggingIn:
		return "LOGGING_IN"
	case StateSyncing:
		return "SYNCING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
