package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/redact"
	"github.com/viant/mcpauth/server/auth/store"
	"pkt.systems/pslog"
)

const (
	BackendAuto  = "auto"
	BackendFile  = "file"
	BackendRedis = "redis"

	defaultFileName = "client_registry.json"
)

// Config selects the registry backend.
type Config struct {
	Backend   string
	URL       string
	StateDir  string
	RedisURL  string
	Namespace string
	Timeout   time.Duration
}

// DefaultURL returns the file location used when no URL is configured.
func (c *Config) DefaultURL() string {
	if c.URL != "" {
		return c.URL
	}
	if c.StateDir != "" {
		return filepath.Join(c.StateDir, defaultFileName)
	}
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "mcpauth", defaultFileName)
	}
	return filepath.Join(os.TempDir(), "mcpauth", defaultFileName)
}

// New builds the configured backend. Auto selects Redis when a URL is set.
// An unreachable Redis falls back to the file backend.
func New(ctx context.Context, cfg *Config, logger pslog.Logger) Registry {
	if cfg == nil {
		cfg = &Config{}
	}
	logger = logging.Subsystem(logger, "registry")
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" || backend == BackendAuto {
		backend = BackendFile
		if cfg.RedisURL != "" {
			backend = BackendRedis
		}
	}
	if backend == BackendRedis {
		if cfg.RedisURL != "" {
			client, err := store.Dial(ctx, cfg.RedisURL, cfg.Timeout)
			if err == nil {
				logger.Info("registry.backend", "backend", BackendRedis, "url", redact.URL(cfg.RedisURL))
				return NewRedisRegistry(client, cfg.Namespace, logger)
			}
			logger.Warn("registry.redis.probe_failed", "url", redact.URL(cfg.RedisURL), "error", err, "fallback", BackendFile)
		} else {
			logger.Warn("registry.redis.missing_url", "fallback", BackendFile)
		}
	}
	URL := cfg.DefaultURL()
	logger.Info("registry.backend", "backend", BackendFile, "url", URL)
	return NewFileRegistry(URL, logger)
}
