package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/viant/mcpauth/internal/collection"
	"github.com/viant/mcpauth/internal/logging"
	"pkt.systems/pslog"
)

// ErrStaticClient reports an attempt to remove a client configured at startup.
var ErrStaticClient = errors.New("static client")

// Catalog is the in-memory view of registered clients used on every
// authorize and token request.
type Catalog struct {
	registry Registry
	clients  *collection.SyncMap[string, *Registration]
	static   map[string]bool
	logger   pslog.Logger
}

// NewCatalog loads persisted registrations and merges static ones without
// overwriting a persisted entry with the same client id. A backend failure is
// logged and the catalog starts with static clients only.
func NewCatalog(ctx context.Context, registry Registry, static []*Registration, logger pslog.Logger) *Catalog {
	ret := &Catalog{
		registry: registry,
		clients:  collection.NewSyncMap[string, *Registration](),
		static:   map[string]bool{},
		logger:   logging.Subsystem(logger, "registry", "catalog"),
	}
	persisted, err := registry.LoadAll(ctx)
	if err != nil {
		ret.logger.Warn("registry.catalog.load_failed", "error", err)
	}
	for _, registration := range persisted {
		ret.clients.Put(registration.ClientID, registration)
	}
	merged := 0
	for _, registration := range static {
		if registration == nil || registration.ClientID == "" {
			continue
		}
		candidate := registration.Clone()
		candidate.Normalize()
		if err := candidate.Validate(); err != nil {
			ret.logger.Warn("registry.catalog.static_invalid", "client_id", candidate.ClientID, "error", err)
			continue
		}
		if ret.clients.PutIfAbsent(candidate.ClientID, candidate) {
			ret.static[candidate.ClientID] = true
			merged++
		}
	}
	ret.logger.Info("registry.catalog.loaded", "persisted", len(persisted), "static", merged)
	return ret
}

// Lookup returns a registration, consulting the backend on a cache miss so
// clients registered by another instance are visible.
func (c *Catalog) Lookup(ctx context.Context, clientID string) (*Registration, bool) {
	if clientID == "" {
		return nil, false
	}
	if registration, ok := c.clients.Get(clientID); ok {
		return registration.Clone(), true
	}
	registration, ok, err := c.registry.Get(ctx, clientID)
	if err != nil {
		c.logger.Warn("registry.catalog.lookup_failed", "client_id", clientID, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	c.clients.Put(clientID, registration)
	return registration.Clone(), true
}

// Register validates and persists registration before exposing it. Unlike
// restored or static entries, a new registration must name its redirect URIs.
func (c *Catalog) Register(ctx context.Context, registration *Registration) error {
	if len(registration.RedirectURIs) == 0 {
		return fmt.Errorf("%w: redirect_uris must not be empty", ErrInvalidRegistration)
	}
	registration.Normalize()
	if err := registration.Validate(); err != nil {
		return err
	}
	if err := c.registry.Save(ctx, registration); err != nil {
		return err
	}
	c.clients.Put(registration.ClientID, registration.Clone())
	return nil
}

// Remove deletes a dynamically registered client from the backend and the
// catalog. Static clients cannot be removed.
func (c *Catalog) Remove(ctx context.Context, clientID string) error {
	if c.static[clientID] {
		return fmt.Errorf("registry: remove %s: %w", clientID, ErrStaticClient)
	}
	if err := c.registry.Remove(ctx, clientID); err != nil {
		return err
	}
	c.clients.Delete(clientID)
	return nil
}

// IsStatic reports whether clientID was configured at startup.
func (c *Catalog) IsStatic(clientID string) bool {
	return c.static[clientID]
}

// Size returns the number of known clients.
func (c *Catalog) Size() int {
	return c.clients.Size()
}
