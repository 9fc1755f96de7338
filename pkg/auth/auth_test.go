package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name     string
		username string
		endpoint string
		want     Mode
	}{
		{"no credentials", "", "wss://192.168.1.50:17000", ModeNone},
		{"no credentials no endpoint", "", "", ModeNone},
		{"local wss", "alice@example.com", "wss://192.168.1.50:17000", ModeLocal},
		{"local ws", "alice@example.com", "ws://192.168.1.50:17000", ModeLocal},
		{"remote", "alice@example.com", "", ModeRemote},
		{"non-ws endpoint", "alice@example.com", "https://example.com", ModeRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveMode(tt.username, tt.endpoint))
		})
	}
}

func TestHashPassword(t *testing.T) {
	// Stable output: the hash feeds a URL, so it must be lowercase hex.
	h := hashPassword("alice", "secret")
	assert.Len(t, h, 40)
	assert.Regexp(t, "^[0-9a-f]{40}$", h)
	assert.Equal(t, h, hashPassword("alice", "secret"))
	assert.NotEqual(t, h, hashPassword("alice", "other"))
}

// identityBlob builds a base64 identity payload expiring at the given
// offset from now.
func identityBlob(t *testing.T, expires time.Time) string {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"Expires":    expires.Unix(),
		"PK_Account": 1234,
	})
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(raw)
}

// fakeCloud is an httptest-backed stand-in for the identity service,
// the account server, the token exchange, and the cloud request API.
type fakeCloud struct {
	t *testing.T

	srv *httptest.Server

	identityStatus atomic.Int32
	identityCalls  atomic.Int32
	identityDelay  time.Duration

	serial string
	relay  string
	keys   map[string]any
}

func newFakeCloud(t *testing.T) *fakeCloud {
	fc := &fakeCloud{t: t, serial: "70000123", relay: "wss://relay.example.com"}
	fc.identityStatus.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("/autha/auth/username/", func(w http.ResponseWriter, r *http.Request) {
		fc.identityCalls.Add(1)
		if fc.identityDelay > 0 {
			time.Sleep(fc.identityDelay)
		}
		status := int(fc.identityStatus.Load())
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		require.NotEmpty(t, r.URL.Query().Get("SHA1Password"))
		assert.Equal(t, "1", r.URL.Query().Get("PK_Oem"))
		respond(w, map[string]any{
			"Identity":          identityBlob(t, time.Now().Add(time.Hour)),
			"IdentitySignature": "sig-1",
			"Server_Account":    "account.example.com",
		})
	})
	mux.HandleFunc("/device/device/device/", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("MMSAuth"))
		assert.Equal(t, "sig-1", r.Header.Get("MMSAuthSig"))
		respond(w, map[string]any{"Server_Relay": fc.relay})
	})
	mux.HandleFunc("/mca-router/token/exchange/legacy-to-cloud/", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("MMSAuth"))
		respond(w, map[string]any{"token": "bearer-1"})
	})
	mux.HandleFunc("/v1/request", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer bearer-1", r.Header.Get("Authorization"))
		var req struct {
			Call string `json:"call"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "access_keys_sync", req.Call)
		respond(w, map[string]any{"data": map[string]any{"keys": fc.keys}})
	})

	fc.srv = httptest.NewServer(mux)
	t.Cleanup(fc.srv.Close)

	fc.keys = map[string]any{
		"key-controller": map[string]any{
			"meta": map[string]any{
				"entity": map[string]any{
					"type": "controller",
					"id":   70000123,
					"uuid": "ctl-uuid-1",
				},
			},
		},
		"key-token": map[string]any{
			"data": map[string]any{"string": "local-token-1"},
			"meta": map[string]any{
				"entity": map[string]any{"type": "user", "uuid": "user-uuid-1"},
				"target": map[string]any{"type": "controller", "uuid": "ctl-uuid-1"},
			},
		},
	}
	return fc
}

func respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func (fc *fakeCloud) manager(dumpDir string) *Manager {
	return NewManager(Config{
		Username:           "alice@example.com",
		Password:           "secret",
		IdentityURL:        fc.srv.URL,
		TokenExchangeURL:   fc.srv.URL + "/mca-router/token/exchange/legacy-to-cloud/",
		CloudRequestURL:    fc.srv.URL + "/v1/request",
		AccountURLOverride: fc.srv.URL,
		DumpDir:            dumpDir,
	})
}

func TestCloudIdentity(t *testing.T) {
	fc := newFakeCloud(t)
	m := fc.manager("")

	id, err := m.CloudIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sig-1", id.Signature)
	assert.Equal(t, "account.example.com", id.ServerAccount)
	assert.True(t, id.Valid(time.Now()))

	// Second call hits the cache.
	_, err = m.CloudIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fc.identityCalls.Load())
}

func TestCloudIdentityBadCredentials(t *testing.T) {
	fc := newFakeCloud(t)
	fc.identityStatus.Store(http.StatusNotFound)
	m := fc.manager("")

	_, err := m.CloudIdentity(context.Background())
	require.Error(t, err)
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.True(t, IsFatal(err))
}

func TestCloudIdentityServerError(t *testing.T) {
	fc := newFakeCloud(t)
	fc.identityStatus.Store(http.StatusBadGateway)
	m := fc.manager("")

	_, err := m.CloudIdentity(context.Background())
	require.Error(t, err)
	assert.False(t, IsFatal(err), "5xx must stay retryable")
}

func TestCloudIdentityConcurrentMemoization(t *testing.T) {
	fc := newFakeCloud(t)
	fc.identityDelay = 50 * time.Millisecond
	m := fc.manager("")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.CloudIdentity(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), fc.identityCalls.Load(), "concurrent callers must share one fetch")
}

func TestResolveRemoteAccess(t *testing.T) {
	fc := newFakeCloud(t)
	m := fc.manager("")

	access, err := m.ResolveRemoteAccess(context.Background(), "70000123")
	require.NoError(t, err)
	assert.Equal(t, "wss://relay.example.com", access.Endpoint)
	require.NotNil(t, access.Identity)
	assert.Equal(t, "sig-1", access.Identity.Signature)
}

func TestResolveLocalAccess(t *testing.T) {
	fc := newFakeCloud(t)
	dir := t.TempDir()
	m := fc.manager(dir)

	access, err := m.ResolveLocalAccess(context.Background(), "70000123")
	require.NoError(t, err)
	assert.Equal(t, "ctl-uuid-1", access.ControllerUUID)
	assert.Equal(t, "user-uuid-1", access.UserID)
	assert.Equal(t, "local-token-1", access.Token)

	// Diagnostic dumps landed in the dump dir.
	for _, name := range []string{"ezlo_auth_login.json", "ezlo_auth_token.json", "ezlo_auth_sync.json"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}

	// Cached per serial.
	again, err := m.ResolveLocalAccess(context.Background(), "70000123")
	require.NoError(t, err)
	assert.Same(t, access, again)
}

func TestResolveLocalAccessNoController(t *testing.T) {
	fc := newFakeCloud(t)
	m := fc.manager("")

	_, err := m.ResolveLocalAccess(context.Background(), "99999999")
	require.ErrorIs(t, err, ErrNoController)
	assert.False(t, IsFatal(err), "missing controller stays retryable")
}

func TestResolveLocalAccessNoToken(t *testing.T) {
	fc := newFakeCloud(t)
	delete(fc.keys, "key-token")
	m := fc.manager("")

	_, err := m.ResolveLocalAccess(context.Background(), "70000123")
	require.ErrorIs(t, err, ErrNoAccessToken)
	assert.False(t, IsFatal(err))
}

func TestInvalidate(t *testing.T) {
	fc := newFakeCloud(t)
	m := fc.manager("")

	_, err := m.CloudIdentity(context.Background())
	require.NoError(t, err)

	m.Invalidate()

	_, err = m.CloudIdentity(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), fc.identityCalls.Load())
}

func TestParseLocalAccessSkipsEmptyTokens(t *testing.T) {
	keys := map[string]accessKey{}
	require.NoError(t, json.Unmarshal([]byte(fmt.Sprintf(`{
		"c": {"meta": {"entity": {"type": "controller", "id": "%s", "uuid": "ctl-1"}}},
		"empty": {"meta": {"entity": {"type": "user", "uuid": "u1"}, "target": {"type": "controller", "uuid": "ctl-1"}}},
		"good": {"data": {"string": "tok"}, "meta": {"entity": {"type": "user", "uuid": "u2"}, "target": {"type": "controller", "uuid": "ctl-1"}}}
	}`, "70000123")), &keys))

	access, err := parseLocalAccess(keys, "70000123")
	require.NoError(t, err)
	assert.Equal(t, "u2", access.UserID)
	assert.Equal(t, "tok", access.Token)
}

func TestMemoryCachePartialInvalidation(t *testing.T) {
	c := NewMemoryCache()
	c.PutIdentity("alice", &Identity{Token: "t", Expires: time.Now().Add(time.Hour)})
	c.PutLocalAccess("70000123", &LocalAccess{Token: "tok"})
	c.PutRemoteAccess("70000123", &RemoteAccess{Endpoint: "wss://relay"})
	c.PutLocalAccess("70000456", &LocalAccess{Token: "tok2"})

	c.InvalidateAccess("70000123")

	_, ok := c.LocalAccess("70000123")
	assert.False(t, ok)
	_, ok = c.RemoteAccess("70000123")
	assert.False(t, ok)
	_, ok = c.LocalAccess("70000456")
	assert.True(t, ok)
	_, ok = c.Identity("alice")
	assert.True(t, ok)

	c.InvalidateIdentity("alice")
	_, ok = c.Identity("alice")
	assert.False(t, ok)
}

func TestMemoryCacheIdentityExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.PutIdentity("alice", &Identity{Token: "t", Expires: now.Add(10 * time.Minute)})

	_, ok := c.Identity("alice")
	assert.True(t, ok)

	now = now.Add(11 * time.Minute)
	_, ok = c.Identity("alice")
	assert.False(t, ok)
}
