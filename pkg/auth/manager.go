package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config configures a Manager.
type Config struct {
	Username string
	Password string

	// IdentityURL, TokenExchangeURL, and CloudRequestURL override the
	// production cloud endpoints, mainly for tests.
	IdentityURL      string
	TokenExchangeURL string
	CloudRequestURL  string

	// AccountURLOverride replaces the Server_Account host from the
	// identity when looking up a hub's relay. Tests use it to point at
	// a local server.
	AccountURLOverride string

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// Cache defaults to a fresh MemoryCache.
	Cache Cache

	// DumpDir, when set, receives pretty-printed JSON copies of every
	// cloud response for diagnostics.
	DumpDir string
}

// RemoteAccess is what a relay connection needs: the relay endpoint
// plus the identity to log in through it.
type RemoteAccess struct {
	Endpoint string
	Identity *Identity
}

// LocalAccess is the credential set for direct hub login.
type LocalAccess struct {
	ControllerUUID string
	UserID         string
	Token          string
}

// inflightCall shares one fetch between concurrent callers.
type inflightCall struct {
	done chan struct{}
	val  any
	err  error
}

// Manager runs the cloud authentication chains with caching and
// in-flight deduplication.
type Manager struct {
	cfg   Config
	http  *http.Client
	cache Cache
	now   func() time.Time

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

// NewManager creates a manager. Zero-value Config fields get defaults.
func NewManager(cfg Config) *Manager {
	if cfg.IdentityURL == "" {
		cfg.IdentityURL = DefaultIdentityURL
	}
	if cfg.TokenExchangeURL == "" {
		cfg.TokenExchangeURL = DefaultTokenExchangeURL
	}
	if cfg.CloudRequestURL == "" {
		cfg.CloudRequestURL = DefaultCloudRequestURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.Cache == nil {
		cfg.Cache = NewMemoryCache()
	}
	return &Manager{
		cfg:      cfg,
		http:     cfg.HTTPClient,
		cache:    cfg.Cache,
		now:      time.Now,
		inflight: make(map[string]*inflightCall),
	}
}

// Invalidate drops all cached authentication state. The session calls
// this when repeated reconnects suggest the credentials went stale.
func (m *Manager) Invalidate() {
	m.cache.Invalidate()
}

// InvalidateAccess drops one hub's cached access so the next resolve
// goes back to the cloud. Used after a hub rejects a login.
func (m *Manager) InvalidateAccess(serial string) {
	m.cache.InvalidateAccess(serial)
}

// InvalidateIdentity drops the configured user's cached identity.
func (m *Manager) InvalidateIdentity() {
	m.cache.InvalidateIdentity(m.cfg.Username)
}

// single runs fetch once per key, sharing the result with concurrent
// callers for the same key.
func (m *Manager) single(key string, fetch func() (any, error)) (any, error) {
	m.mu.Lock()
	if call, ok := m.inflight[key]; ok {
		m.mu.Unlock()
		<-call.done
		return call.val, call.err
	}
	call := &inflightCall{done: make(chan struct{})}
	m.inflight[key] = call
	m.mu.Unlock()

	call.val, call.err = fetch()

	m.mu.Lock()
	delete(m.inflight, key)
	m.mu.Unlock()
	close(call.done)
	return call.val, call.err
}

// CloudIdentity logs into the legacy identity service, or returns the
// cached identity while it remains valid.
func (m *Manager) CloudIdentity(ctx context.Context) (*Identity, error) {
	if id, ok := m.cache.Identity(m.cfg.Username); ok {
		return id, nil
	}

	v, err := m.single("identity:"+m.cfg.Username, func() (any, error) {
		return m.fetchIdentity(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Identity), nil
}

func (m *Manager) fetchIdentity(ctx context.Context) (*Identity, error) {
	u := fmt.Sprintf("%s/autha/auth/username/%s?SHA1Password=%s&PK_Oem=1&TokenVersion=2",
		m.cfg.IdentityURL,
		url.PathEscape(m.cfg.Username),
		hashPassword(m.cfg.Username, m.cfg.Password))

	body, status, err := m.get(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("identity login: %w", err)
	}
	switch {
	case status == http.StatusNotFound, status == http.StatusUnauthorized, status == http.StatusForbidden:
		// Wrong username or password. Retrying cannot help.
		return nil, &FatalError{Op: "identity login", Status: status}
	case status != http.StatusOK:
		return nil, fmt.Errorf("identity login: status %d", status)
	}

	var id Identity
	if err := json.Unmarshal(body, &id); err != nil {
		return nil, fmt.Errorf("identity login: %w", err)
	}
	if id.Token == "" || id.Signature == "" {
		return nil, fmt.Errorf("identity login: response missing identity")
	}
	if err := id.decodeExpiry(); err != nil {
		return nil, fmt.Errorf("identity login: %w", err)
	}

	m.dump("ezlo_auth_login.json", json.RawMessage(body))
	m.cache.PutIdentity(m.cfg.Username, &id)
	return &id, nil
}

// ResolveRemoteAccess looks up the cloud relay serving the hub.
func (m *Manager) ResolveRemoteAccess(ctx context.Context, serial string) (*RemoteAccess, error) {
	if access, ok := m.cache.RemoteAccess(serial); ok {
		return access, nil
	}

	v, err := m.single("remote:"+serial, func() (any, error) {
		return m.fetchRemoteAccess(ctx, serial)
	})
	if err != nil {
		return nil, err
	}
	return v.(*RemoteAccess), nil
}

func (m *Manager) fetchRemoteAccess(ctx context.Context, serial string) (*RemoteAccess, error) {
	id, err := m.CloudIdentity(ctx)
	if err != nil {
		return nil, err
	}

	base := m.cfg.AccountURLOverride
	if base == "" {
		base = "https://" + id.ServerAccount
	}
	u := fmt.Sprintf("%s/device/device/device/%s", base, url.PathEscape(serial))

	body, status, err := m.get(ctx, u, id)
	if err != nil {
		return nil, fmt.Errorf("device lookup: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("device lookup: status %d", status)
	}

	var device struct {
		ServerRelay string `json:"Server_Relay"`
	}
	if err := json.Unmarshal(body, &device); err != nil {
		return nil, fmt.Errorf("device lookup: %w", err)
	}
	if device.ServerRelay == "" {
		return nil, fmt.Errorf("device lookup: no relay for serial %s", serial)
	}

	m.dump("ezlo_account_device.json", json.RawMessage(body))
	access := &RemoteAccess{Endpoint: device.ServerRelay, Identity: id}
	m.cache.PutRemoteAccess(serial, access)
	return access, nil
}

// ResolveLocalAccess obtains the direct-login credentials for the hub.
func (m *Manager) ResolveLocalAccess(ctx context.Context, serial string) (*LocalAccess, error) {
	if access, ok := m.cache.LocalAccess(serial); ok {
		return access, nil
	}

	v, err := m.single("local:"+serial, func() (any, error) {
		return m.fetchLocalAccess(ctx, serial)
	})
	if err != nil {
		return nil, err
	}
	return v.(*LocalAccess), nil
}

func (m *Manager) fetchLocalAccess(ctx context.Context, serial string) (*LocalAccess, error) {
	id, err := m.CloudIdentity(ctx)
	if err != nil {
		return nil, err
	}

	bearer, err := m.exchangeToken(ctx, id)
	if err != nil {
		return nil, err
	}

	keys, err := m.syncAccessKeys(ctx, bearer)
	if err != nil {
		return nil, err
	}

	access, err := parseLocalAccess(keys, serial)
	if err != nil {
		return nil, err
	}

	m.cache.PutLocalAccess(serial, access)
	return access, nil
}

// exchangeToken trades the legacy identity for a cloud bearer token.
func (m *Manager) exchangeToken(ctx context.Context, id *Identity) (string, error) {
	body, status, err := m.get(ctx, m.cfg.TokenExchangeURL, id)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		return "", &FatalError{Op: "token exchange", Status: status}
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("token exchange: status %d", status)
	}

	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	if resp.Token == "" {
		return "", fmt.Errorf("token exchange: response missing token")
	}

	m.dump("ezlo_auth_token.json", json.RawMessage(body))
	return resp.Token, nil
}

// syncAccessKeys fetches the account's access key set.
func (m *Manager) syncAccessKeys(ctx context.Context, bearer string) (map[string]accessKey, error) {
	payload := map[string]any{
		"call":    "access_keys_sync",
		"version": "1",
		"params": map[string]any{
			"version": 53,
			"entity":  "controller",
			"uuid":    uuid.Must(uuid.NewUUID()).String(),
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.cfg.CloudRequestURL, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("access keys sync: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("access keys sync: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("access keys sync: status %d", resp.StatusCode)
	}

	var parsed struct {
		Data struct {
			Keys map[string]accessKey `json:"keys"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("access keys sync: %w", err)
	}

	m.dump("ezlo_auth_sync.json", json.RawMessage(body))
	return parsed.Data.Keys, nil
}

// get performs an HTTP GET, attaching identity headers when id is
// non-nil, and returns the body and status.
func (m *Manager) get(ctx context.Context, u string, id *Identity) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, err
	}
	if id != nil {
		req.Header.Set("MMSAuth", id.Token)
		req.Header.Set("MMSAuthSig", id.Signature)
	}

	resp, err := m.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

// dump writes a cloud response to the diagnostics directory.
func (m *Manager) dump(name string, v any) {
	if m.cfg.DumpDir == "" {
		return
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(m.cfg.DumpDir, name), data, 0o600)
}
