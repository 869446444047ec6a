package verifier

import (
	"context"
	"fmt"
	"net/http"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// KeySource resolves a verification key by key id. An empty kid selects the
// only key of a single-key set.
type KeySource interface {
	Key(ctx context.Context, kid string) (interface{}, error)
}

// RemoteKeySet serves keys from a JWKS endpoint through a refreshing cache.
type RemoteKeySet struct {
	URL   string
	cache *jwk.Cache
}

// NewRemoteKeySet registers URL with a background refreshing cache bound to ctx.
func NewRemoteKeySet(ctx context.Context, URL string, client *http.Client) (*RemoteKeySet, error) {
	cache := jwk.NewCache(ctx)
	var options []jwk.RegisterOption
	if client != nil {
		options = append(options, jwk.WithHTTPClient(client))
	}
	if err := cache.Register(URL, options...); err != nil {
		return nil, fmt.Errorf("failed to register jwks %s: %w", URL, err)
	}
	return &RemoteKeySet{URL: URL, cache: cache}, nil
}

// Key returns the raw public key; an unknown kid forces one refresh to pick up rotations.
func (r *RemoteKeySet) Key(ctx context.Context, kid string) (interface{}, error) {
	set, err := r.cache.Get(ctx, r.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch jwks: %w", err)
	}
	key, ok := lookup(set, kid)
	if !ok {
		if set, err = r.cache.Refresh(ctx, r.URL); err != nil {
			return nil, fmt.Errorf("failed to refresh jwks: %w", err)
		}
		if key, ok = lookup(set, kid); !ok {
			return nil, fmt.Errorf("signing key %q not found", kid)
		}
	}
	var raw interface{}
	if err = key.Raw(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

func lookup(set jwk.Set, kid string) (jwk.Key, bool) {
	if kid == "" {
		if set.Len() == 1 {
			return set.Key(0)
		}
		return nil, false
	}
	return set.LookupKeyID(kid)
}

// StaticKeys is a fixed kid to public key map.
type StaticKeys map[string]interface{}

func (s StaticKeys) Key(_ context.Context, kid string) (interface{}, error) {
	if key, ok := s[kid]; ok {
		return key, nil
	}
	if kid == "" && len(s) == 1 {
		for _, key := range s {
			return key, nil
		}
	}
	return nil, fmt.Errorf("signing key %q not found", kid)
}
