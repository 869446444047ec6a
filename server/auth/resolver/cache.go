package resolver

import (
	"time"

	"github.com/viant/mcpauth/internal/collection"
	"github.com/viant/mcpauth/server/auth/credential"
)

// ConnectionCache remembers the identity last resolved for each connection.
type ConnectionCache struct {
	entries *collection.SyncMap[string, *credential.Identity]
}

func NewConnectionCache() *ConnectionCache {
	return &ConnectionCache{entries: collection.NewSyncMap[string, *credential.Identity]()}
}

// Remember caches identity for sessionID.
func (c *ConnectionCache) Remember(sessionID string, identity *credential.Identity) {
	if sessionID == "" || identity == nil {
		return
	}
	c.entries.Put(sessionID, identity.Clone(identity.Source))
}

// Lookup returns the cached identity, dropping it once expired.
func (c *ConnectionCache) Lookup(sessionID string, now time.Time) (*credential.Identity, bool) {
	identity, ok := c.entries.Get(sessionID)
	if !ok {
		return nil, false
	}
	if identity.Expired(now) {
		c.entries.DeleteIf(sessionID, func(v *credential.Identity) bool { return v == identity })
		return nil, false
	}
	return identity.Clone(credential.SourceConnection), true
}

// Forget drops the cached identity for sessionID.
func (c *ConnectionCache) Forget(sessionID string) {
	c.entries.Delete(sessionID)
}

// Prune removes expired entries.
func (c *ConnectionCache) Prune(now time.Time) int {
	removed := 0
	c.entries.Range(func(sessionID string, identity *credential.Identity) bool {
		if identity.Expired(now) && c.entries.DeleteIf(sessionID, func(v *credential.Identity) bool { return v == identity }) {
			removed++
		}
		return true
	})
	return removed
}

func (c *ConnectionCache) Size() int {
	return c.entries.Size()
}
