package registry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_StaticDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	backend := NewFileRegistry(filepath.Join(t.TempDir(), "clients.json"), nil)
	require.NoError(t, backend.Save(ctx, newPublicClient("shared", "https://dynamic.example/cb")))

	static, err := LoadStatic(ctx, `[
		{"client_id":"shared","redirect_uris":["https://static.example/cb"]},
		{"client_id":"trusted","client_secret":"s","redirect_uris":["https://trusted.example/cb"]},
		{"client_id":"no-redirect"}
	]`, "")
	require.NoError(t, err)

	catalog := NewCatalog(ctx, backend, static, nil)
	shared, ok := catalog.Lookup(ctx, "shared")
	require.True(t, ok)
	assert.Equal(t, []string{"https://dynamic.example/cb"}, shared.RedirectURIs)

	trusted, ok := catalog.Lookup(ctx, "trusted")
	require.True(t, ok)
	assert.Equal(t, AuthMethodSecretPost, trusted.TokenEndpointAuthMethod)

	restored, ok := catalog.Lookup(ctx, "no-redirect")
	require.True(t, ok)
	assert.Equal(t, []string{DefaultRedirectURI}, restored.RedirectURIs)
	assert.Equal(t, 3, catalog.Size())

	persisted, err := backend.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, 1, "static clients are not persisted")

	assert.False(t, catalog.IsStatic("shared"))
	assert.True(t, catalog.IsStatic("trusted"))
	err = catalog.Remove(ctx, "trusted")
	require.ErrorIs(t, err, ErrStaticClient)
	_, ok = catalog.Lookup(ctx, "trusted")
	assert.True(t, ok)
	require.NoError(t, catalog.Remove(ctx, "shared"))
	_, ok = catalog.Lookup(ctx, "shared")
	assert.False(t, ok)
}

func TestCatalog_RegisterAndRemove(t *testing.T) {
	ctx := context.Background()
	URL := filepath.Join(t.TempDir(), "clients.json")
	catalog := NewCatalog(ctx, NewFileRegistry(URL, nil), nil, nil)
	require.NoError(t, catalog.Register(ctx, newPublicClient("c1", "https://client.example/cb")))
	err := catalog.Register(ctx, newPublicClient("c2"))
	require.ErrorIs(t, err, ErrInvalidRegistration)
	_, ok := catalog.Lookup(ctx, "c2")
	assert.False(t, ok)

	reloaded := NewCatalog(ctx, NewFileRegistry(URL, nil), nil, nil)
	got, ok := reloaded.Lookup(ctx, "c1")
	require.True(t, ok)
	assert.Equal(t, []string{"https://client.example/cb"}, got.RedirectURIs)

	require.NoError(t, reloaded.Remove(ctx, "c1"))
	_, ok = reloaded.Lookup(ctx, "c1")
	assert.False(t, ok)
}

func TestCatalog_LookupFallsBackToBackend(t *testing.T) {
	ctx := context.Background()
	backend := NewFileRegistry(filepath.Join(t.TempDir(), "clients.json"), nil)
	catalog := NewCatalog(ctx, backend, nil, nil)
	require.NoError(t, backend.Save(ctx, newPublicClient("late", "https://client.example/cb")))
	_, ok := catalog.Lookup(ctx, "late")
	assert.True(t, ok)
	_, ok = catalog.Lookup(ctx, "")
	assert.False(t, ok)
}

func TestNew_SelectsBackend(t *testing.T) {
	ctx := context.Background()
	server := miniredis.RunT(t)
	dir := t.TempDir()

	_, isFile := New(ctx, &Config{StateDir: dir}, nil).(*FileRegistry)
	assert.True(t, isFile)

	redisRegistry, isRedis := New(ctx, &Config{RedisURL: "redis://" + server.Addr()}, nil).(*RedisRegistry)
	assert.True(t, isRedis)
	if redisRegistry != nil {
		_ = redisRegistry.client.Close()
	}

	fileRegistry, isFile := New(ctx, &Config{Backend: BackendFile, RedisURL: "redis://" + server.Addr(), StateDir: dir}, nil).(*FileRegistry)
	assert.True(t, isFile)
	assert.Equal(t, filepath.Join(dir, "client_registry.json"), fileRegistry.URL)

	_, isFile = New(ctx, &Config{Backend: BackendRedis, StateDir: dir}, nil).(*FileRegistry)
	assert.True(t, isFile)
}
