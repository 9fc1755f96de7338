package auth

import (
	"sync"
	"time"
)

// Cache stores authentication results across sessions. Implementations
// must be safe for concurrent use. The manager consults the cache
// before every cloud round trip and invalidates it when the session
// decides credentials may be stale.
type Cache interface {
	Identity(username string) (*Identity, bool)
	PutIdentity(username string, id *Identity)

	LocalAccess(serial string) (*LocalAccess, bool)
	PutLocalAccess(serial string, access *LocalAccess)

	RemoteAccess(serial string) (*RemoteAccess, bool)
	PutRemoteAccess(serial string, access *RemoteAccess)

	// InvalidateIdentity drops one username's identity.
	InvalidateIdentity(username string)

	// InvalidateAccess drops one serial's local and remote access.
	InvalidateAccess(serial string)

	// Invalidate drops everything.
	Invalidate()
}

// MemoryCache is the default in-process Cache. Identities expire on
// their own schedule; access entries live until invalidated.
type MemoryCache struct {
	mu         sync.Mutex
	identities map[string]*Identity
	local      map[string]*LocalAccess
	remote     map[string]*RemoteAccess
	now        func() time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		identities: make(map[string]*Identity),
		local:      make(map[string]*LocalAccess),
		remote:     make(map[string]*RemoteAccess),
		now:        time.Now,
	}
}

func (c *MemoryCache) Identity(username string) (*Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.identities[username]
	if !ok || !id.Valid(c.now()) {
		delete(c.identities, username)
		return nil, false
	}
	return id, true
}

func (c *MemoryCache) PutIdentity(username string, id *Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identities[username] = id
}

func (c *MemoryCache) LocalAccess(serial string) (*LocalAccess, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	access, ok := c.local[serial]
	return access, ok
}

func (c *MemoryCache) PutLocalAccess(serial string, access *LocalAccess) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[serial] = access
}

func (c *MemoryCache) RemoteAccess(serial string) (*RemoteAccess, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	access, ok := c.remote[serial]
	return access, ok
}

func (c *MemoryCache) PutRemoteAccess(serial string, access *RemoteAccess) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote[serial] = access
}

func (c *MemoryCache) InvalidateIdentity(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.identities, username)
}

func (c *MemoryCache) InvalidateAccess(serial string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.local, serial)
	delete(c.remote, serial)
}

func (c *MemoryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identities = make(map[string]*Identity)
	c.local = make(map[string]*LocalAccess)
	c.remote = make(map[string]*RemoteAccess)
}

// Compile-time interface satisfaction check.
var _ Cache = (*MemoryCache)(nil)
