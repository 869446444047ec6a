package credential

import (
	"context"

	"github.com/viant/mcp-protocol/authorization"
)

type identityKey struct{}

// WithIdentity stores id on ctx. The raw bearer is also exposed under
// authorization.TokenKey for handlers built on mcp-protocol.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, id)
	if id != nil && id.Token != "" {
		ctx = context.WithValue(ctx, authorization.TokenKey, &authorization.Token{Token: id.Token})
	}
	return ctx
}

// IdentityFromContext returns the identity attached by the resolver.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}
