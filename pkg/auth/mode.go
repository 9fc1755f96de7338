package auth

import "regexp"

// Mode selects the authentication chain for a hub.
type Mode int

const (
	// ModeNone connects without credentials. Works on hubs with
	// anonymous local access enabled.
	ModeNone Mode = iota

	// ModeLocal authenticates against the hub directly using a
	// cloud-issued local access token.
	ModeLocal

	// ModeRemote tunnels through the cloud relay for the hub.
	ModeRemote
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeLocal:
		return "local"
	case ModeRemote:
		return "remote"
	default:
		return "unknown"
	}
}

var wsEndpoint = regexp.MustCompile(`^wss?://`)

// ResolveMode picks the authentication mode from the configured
// credentials and endpoint. No username means anonymous access. With
// a username, a configured WebSocket endpoint selects local token
// auth; anything else goes through the relay.
func ResolveMode(username, endpoint string) Mode {
	if username == "" {
		return ModeNone
	}
	if wsEndpoint.MatchString(endpoint) {
		return ModeLocal
	}
	return ModeRemote
}
