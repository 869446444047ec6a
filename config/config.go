// Package config loads the gateway configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/viant/mcpauth/server/auth"
	"github.com/viant/mcpauth/server/auth/registry"
	"github.com/viant/mcpauth/server/auth/store"
	"golang.org/x/oauth2"
)

// Config holds every gateway setting.
type Config struct {
	Listen      string `env:"MCPAUTH_LISTEN"       envDefault:"127.0.0.1:9000"`
	ServerURL   string `env:"MCPAUTH_SERVER_URL"   envDefault:"http://127.0.0.1:9000"`
	RedirectURI string `env:"MCPAUTH_REDIRECT_URI"`
	UpstreamURL string `env:"MCPAUTH_UPSTREAM_URL"`
	PAT         string `env:"MCPAUTH_PAT"`

	RedisURL           string  `env:"REDIS_URL"`
	KeyPrefix          string  `env:"MCPAUTH_KEY_PREFIX"           envDefault:"mcpauth:session"`
	MemoryMaxTokens    int     `env:"MCPAUTH_MEMORY_MAX_TOKENS"    envDefault:"10000"`
	MemoryWarnFraction float64 `env:"MCPAUTH_MEMORY_WARN_FRACTION" envDefault:"0.8"`

	RegistryBackend  string `env:"MCPAUTH_CLIENT_REGISTRY_BACKEND"   envDefault:"auto"`
	RegistryURL      string `env:"MCPAUTH_CLIENT_REGISTRY_URL"`
	RegistryRedisURL string `env:"MCPAUTH_CLIENT_REGISTRY_REDIS_URL"`
	StateDir         string `env:"MCPAUTH_STATE_DIR"`
	StaticClients    string `env:"MCPAUTH_STATIC_CLIENTS"`
	StaticClientsURL string `env:"MCPAUTH_STATIC_CLIENTS_URL"`

	ClientID       string   `env:"MCPAUTH_OAUTH_CLIENT_ID"`
	ClientSecret   string   `env:"MCPAUTH_OAUTH_CLIENT_SECRET"`
	AuthURL        string   `env:"MCPAUTH_OAUTH_AUTH_URL"`
	TokenURL       string   `env:"MCPAUTH_OAUTH_TOKEN_URL"`
	JWKSURL        string   `env:"MCPAUTH_OAUTH_JWKS_URL"`
	Issuer         string   `env:"MCPAUTH_OAUTH_ISSUER"`
	Audience       string   `env:"MCPAUTH_OAUTH_AUDIENCE"`
	RequiredScopes []string `env:"MCPAUTH_REQUIRED_SCOPES" envDefault:"view,download,modify" envSeparator:","`

	RequireSession  bool          `env:"MCPAUTH_REQUIRE_SESSION"  envDefault:"true"`
	AllowAnonymous  bool          `env:"MCPAUTH_ALLOW_ANONYMOUS"`
	CleanupInterval time.Duration `env:"MCPAUTH_CLEANUP_INTERVAL" envDefault:"1m"`
	OrphanGrace     time.Duration `env:"MCPAUTH_ORPHAN_GRACE"     envDefault:"30s"`
	MaxTokenTTL     time.Duration `env:"MCPAUTH_MAX_TOKEN_TTL"    envDefault:"1h"`
	CodeTTL         time.Duration `env:"MCPAUTH_CODE_TTL"         envDefault:"5m"`
}

// Load parses the environment.
func Load() (*Config, error) {
	ret := &Config{}
	if err := env.Parse(ret); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return ret, nil
}

// PATMode reports whether a personal access token replaces the OAuth flow.
func (c *Config) PATMode() bool {
	return strings.TrimSpace(c.PAT) != ""
}

// Validate checks the settings the selected mode depends on.
func (c *Config) Validate() error {
	if c.CleanupInterval <= 0 {
		return errors.New("cleanup interval must be positive")
	}
	if c.PATMode() {
		return nil
	}
	var missing []string
	for name, value := range map[string]string{
		"MCPAUTH_OAUTH_CLIENT_ID": c.ClientID,
		"MCPAUTH_OAUTH_AUTH_URL":  c.AuthURL,
		"MCPAUTH_OAUTH_TOKEN_URL": c.TokenURL,
		"MCPAUTH_OAUTH_JWKS_URL":  c.JWKSURL,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

// PublicURL returns the normalized gateway URL.
func (c *Config) PublicURL() string {
	return auth.NormalizeServerURL(c.ServerURL)
}

// CallbackURL returns the redirect URI registered with the upstream provider.
func (c *Config) CallbackURL() string {
	if c.RedirectURI != "" {
		return c.RedirectURI
	}
	return c.PublicURL() + auth.CallbackPath
}

func (c *Config) TokenStore() *store.Config {
	return &store.Config{
		RedisURL:     c.RedisURL,
		KeyPrefix:    c.KeyPrefix,
		MaxEntries:   c.MemoryMaxTokens,
		WarnFraction: c.MemoryWarnFraction,
	}
}

// Registry falls back to the token store Redis URL when no dedicated one is set.
func (c *Config) Registry() *registry.Config {
	redisURL := c.RegistryRedisURL
	if redisURL == "" {
		redisURL = c.RedisURL
	}
	return &registry.Config{
		Backend:   c.RegistryBackend,
		URL:       c.RegistryURL,
		StateDir:  c.StateDir,
		RedisURL:  redisURL,
		Namespace: c.KeyPrefix + ":clients",
	}
}

func (c *Config) Auth() *auth.Config {
	return &auth.Config{
		ServerURL:      c.PublicURL(),
		RequiredScopes: c.RequiredScopes,
		ResourcePath:   "/mcp",
	}
}

// OAuth2 returns the upstream provider client configuration.
func (c *Config) OAuth2() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  c.AuthURL,
			TokenURL: c.TokenURL,
		},
		RedirectURL: c.CallbackURL(),
		Scopes:      c.RequiredScopes,
	}
}
