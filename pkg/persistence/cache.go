package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ezlo-protocol/ezlo-go/pkg/auth"
)

// StateVersion is the current version of the cache file format.
const StateVersion = 1

// identityRecord is the serialized form of an auth.Identity. The
// expiry is stored explicitly because Identity keeps it outside its
// JSON shape.
type identityRecord struct {
	Token         string    `json:"token"`
	Signature     string    `json:"signature"`
	ServerAccount string    `json:"server_account"`
	ExpiresAt     time.Time `json:"expires_at"`
}

func toIdentityRecord(id *auth.Identity) identityRecord {
	return identityRecord{
		Token:         id.Token,
		Signature:     id.Signature,
		ServerAccount: id.ServerAccount,
		ExpiresAt:     id.Expires,
	}
}

func (r identityRecord) identity() *auth.Identity {
	return &auth.Identity{
		Token:         r.Token,
		Signature:     r.Signature,
		ServerAccount: r.ServerAccount,
		Expires:       r.ExpiresAt,
	}
}

type remoteRecord struct {
	Endpoint string         `json:"endpoint"`
	Identity identityRecord `json:"identity"`
}

// cacheState is the on-disk layout.
type cacheState struct {
	Version    int                          `json:"version"`
	SavedAt    time.Time                    `json:"saved_at"`
	Identities map[string]identityRecord    `json:"identities,omitempty"`
	Local      map[string]*auth.LocalAccess `json:"local_access,omitempty"`
	Remote     map[string]remoteRecord      `json:"remote_access,omitempty"`
}

// FileCache is an auth.Cache persisted to a JSON file. Every mutation
// is written through; a write failure leaves the in-memory view
// intact, so the session keeps working and retries the write on the
// next mutation.
type FileCache struct {
	mu    sync.Mutex
	path  string
	state cacheState
	now   func() time.Time
}

// NewFileCache opens or creates a cache file at path.
func NewFileCache(path string) (*FileCache, error) {
	c := &FileCache{
		path: path,
		state: cacheState{
			Identities: make(map[string]identityRecord),
			Local:      make(map[string]*auth.LocalAccess),
			Remote:     make(map[string]remoteRecord),
		},
		now: time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &c.state); err != nil {
		return nil, err
	}
	if c.state.Identities == nil {
		c.state.Identities = make(map[string]identityRecord)
	}
	if c.state.Local == nil {
		c.state.Local = make(map[string]*auth.LocalAccess)
	}
	if c.state.Remote == nil {
		c.state.Remote = make(map[string]remoteRecord)
	}
	return c, nil
}

// save writes the state file. Caller holds the lock.
func (c *FileCache) save() {
	if err := os.MkdirAll(filepath.Dir(c.path), 0700); err != nil {
		return
	}

	c.state.Version = StateVersion
	c.state.SavedAt = c.now()

	data, err := json.MarshalIndent(&c.state, "", "  ")
	if err != nil {
		return
	}
	// Tokens inside, keep it owner-only.
	_ = os.WriteFile(c.path, data, 0600)
}

func (c *FileCache) Identity(username string) (*auth.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.state.Identities[username]
	if !ok {
		return nil, false
	}
	id := rec.identity()
	if !id.Valid(c.now()) {
		delete(c.state.Identities, username)
		c.save()
		return nil, false
	}
	return id, true
}

func (c *FileCache) PutIdentity(username string, id *auth.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Identities[username] = toIdentityRecord(id)
	c.save()
}

func (c *FileCache) LocalAccess(serial string) (*auth.LocalAccess, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	access, ok := c.state.Local[serial]
	return access, ok
}

func (c *FileCache) PutLocalAccess(serial string, access *auth.LocalAccess) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Local[serial] = access
	c.save()
}

func (c *FileCache) RemoteAccess(serial string) (*auth.RemoteAccess, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.state.Remote[serial]
	if !ok {
		return nil, false
	}
	return &auth.RemoteAccess{Endpoint: rec.Endpoint, Identity: rec.Identity.identity()}, true
}

func (c *FileCache) PutRemoteAccess(serial string, access *auth.RemoteAccess) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := remoteRecord{Endpoint: access.Endpoint}
	if access.Identity != nil {
		rec.Identity = toIdentityRecord(access.Identity)
	}
	c.state.Remote[serial] = rec
	c.save()
}

func (c *FileCache) InvalidateIdentity(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.state.Identities, username)
	c.save()
}

func (c *FileCache) InvalidateAccess(serial string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.state.Local, serial)
	delete(c.state.Remote, serial)
	c.save()
}

func (c *FileCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Identities = make(map[string]identityRecord)
	c.state.Local = make(map[string]*auth.LocalAccess)
	c.state.Remote = make(map[string]remoteRecord)
	c.save()
}

// Clear removes the cache file and empties the in-memory state.
func (c *FileCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.Identities = make(map[string]identityRecord)
	c.state.Local = make(map[string]*auth.LocalAccess)
	c.state.Remote = make(map[string]remoteRecord)

	err := os.Remove(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Compile-time interface satisfaction check.
var _ auth.Cache = (*FileCache)(nil)
