package session

import (
	"net/http"
	"time"

	"github.com/ezlo-protocol/ezlo-go/pkg/auth"
	"github.com/ezlo-protocol/ezlo-go/pkg/log"
	"github.com/ezlo-protocol/ezlo-go/pkg/transport"
)

// Default timeouts.
const (
	// DefaultRequestTimeout bounds ordinary request/reply round trips.
	DefaultRequestTimeout = 15 * time.Second

	// DefaultListTimeout bounds the device and item list calls, which
	// can run long on large installations.
	DefaultListTimeout = 60 * time.Second

	// DefaultConnectTimeout bounds the WebSocket dial.
	DefaultConnectTimeout = 15 * time.Second
)

// Config describes one hub. Serial is always required; the rest
// depends on the access mode, which is derived from the config shape:
// no username means anonymous local access, a username with a
// WebSocket endpoint means local token access, a username without one
// means relay access.
type Config struct {
	// Serial is the hub serial number. The session verifies it against
	// hub.info.get after connecting.
	Serial string

	// Endpoint is the hub address for local access: a ws:// or wss://
	// URL, or a bare IPv4 address (expanded to wss on port 17000).
	// Leave empty for relay access.
	Endpoint string

	// Username and Password are the cloud account credentials.
	Username string
	Password string

	// Heartbeat enables periodic liveness probes at this interval.
	// Zero disables them.
	Heartbeat time.Duration

	// RequestTimeout, ListTimeout, and ConnectTimeout default per the
	// package constants.
	RequestTimeout time.Duration
	ListTimeout    time.Duration
	ConnectTimeout time.Duration

	// InsecureTLS skips certificate verification on relay connections
	// too. Direct hub connections always skip it; hubs only have
	// self-signed certificates.
	InsecureTLS bool

	// DisableECCCiphers restricts TLS to RSA suites for Atom hubs.
	DisableECCCiphers bool

	// DumpDir, when set, receives JSON copies of cloud auth responses
	// and enables protocol frame capture paths that need a home on
	// disk.
	DumpDir string

	// Logger receives protocol events. Nil disables logging.
	Logger log.Logger

	// Cache shares authentication state across sessions. Nil gets a
	// private in-memory cache.
	Cache auth.Cache

	// HTTPClient overrides the client used for cloud auth calls.
	HTTPClient *http.Client

	// IdentityURL, TokenExchangeURL, and CloudRequestURL override the
	// production cloud endpoints, mainly for tests.
	IdentityURL      string
	TokenExchangeURL string
	CloudRequestURL  string
	AccountURL       string
}

// withDefaults returns the config with zero fields filled in.
func (c Config) withDefaults() Config {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ListTimeout == 0 {
		c.ListTimeout = DefaultListTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Logger == nil {
		c.Logger = log.NoopLogger{}
	}
	return c
}

// resolve validates the config and derives the normalized local
// endpoint (empty for relay access) and the access mode.
func (c Config) resolve() (string, auth.Mode, error) {
	if c.Serial == "" {
		return "", 0, &ConfigError{Field: "serial", Reason: "required"}
	}

	endpoint := c.Endpoint
	if endpoint != "" {
		var err error
		if endpoint, err = transport.EndpointURL(endpoint); err != nil {
			return "", 0, &ConfigError{Field: "endpoint", Reason: err.Error()}
		}
	}

	mode := auth.ResolveMode(c.Username, endpoint)
	if mode != auth.ModeRemote && endpoint == "" {
		return "", 0, &ConfigError{Field: "endpoint", Reason: "required for local access"}
	}
	if mode == auth.ModeRemote && c.Password == "" {
		return "", 0, &ConfigError{Field: "password", Reason: "required for relay access"}
	}
	return endpoint, mode, nil
}
