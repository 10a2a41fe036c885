package ledger

import (
	"context"
	"sync"

	"reelsweep/pkg/logger"
	"reelsweep/pkg/models"
)

// IdentifierSource yields the known reel IDs, usually a ledger Client.
type IdentifierSource interface {
	Identifiers(ctx context.Context) ([]string, error)
}

// IdentityCache is the in-memory set of reel IDs already present in
// the ledger. It is safe for concurrent use. A cache that failed to
// hydrate stays usable and simply reports nothing as a duplicate;
// callers that care can check Loaded.
type IdentityCache struct {
	mu     sync.RWMutex
	ids    map[string]struct{}
	loaded bool
	source IdentifierSource
	log    logger.Logger
}

// NewIdentityCache builds an empty cache over source.
func NewIdentityCache(source IdentifierSource, log logger.Logger) *IdentityCache {
	if log == nil {
		log = logger.NewNop()
	}
	return &IdentityCache{
		ids:    make(map[string]struct{}),
		source: source,
		log:    log,
	}
}

// Load hydrates the cache from the source once. Repeat calls after a
// successful load are no-ops. A failed load is logged and swallowed;
// the cache remains empty and unloaded.
func (c *IdentityCache) Load(ctx context.Context) {
	c.mu.RLock()
	done := c.loaded
	c.mu.RUnlock()
	if done {
		return
	}

	ids, err := c.source.Identifiers(ctx)
	if err != nil {
		c.log.WithError(err).Warn("identity cache hydration failed, duplicate detection degraded")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		if id == "" || models.IsSentinelID(id) {
			continue
		}
		c.ids[id] = struct{}{}
	}
	c.loaded = true
	c.log.WithField("ids", len(c.ids)).Info("identity cache hydrated")
}

// Refresh discards the cache and hydrates again.
func (c *IdentityCache) Refresh(ctx context.Context) {
	c.mu.Lock()
	c.ids = make(map[string]struct{})
	c.loaded = false
	c.mu.Unlock()
	c.Load(ctx)
}

// Exists reports whether id is already known. Sentinel IDs are never
// considered present.
func (c *IdentityCache) Exists(id string) bool {
	if id == "" || models.IsSentinelID(id) {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.ids[id]
	return ok
}

// Add records id in the cache. Sentinel IDs are ignored.
func (c *IdentityCache) Add(id string) {
	if id == "" || models.IsSentinelID(id) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids[id] = struct{}{}
}

// Len returns the number of cached identifiers.
func (c *IdentityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ids)
}

// Loaded reports whether hydration has succeeded.
func (c *IdentityCache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}
