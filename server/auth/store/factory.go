package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/redact"
)

// DefaultProbeTimeout bounds the startup connectivity probe and Redis I/O.
const DefaultProbeTimeout = 5 * time.Second

// Config selects and tunes a token store backend.
type Config struct {
	RedisURL     string
	KeyPrefix    string
	MaxEntries   int
	WarnFraction float64
	ProbeTimeout time.Duration
}

// New returns a Redis store when RedisURL is set and reachable, otherwise a memory store.
func New(ctx context.Context, cfg *Config, opts ...Option) TokenStore {
	if cfg == nil {
		cfg = &Config{}
	}
	opts = append(opts, WithKeyPrefix(cfg.KeyPrefix), WithWarnFraction(cfg.WarnFraction))
	if cfg.MaxEntries != 0 {
		opts = append(opts, WithMaxEntries(cfg.MaxEntries))
	}
	logger := logging.Subsystem(newOptions(opts).logger, "tokenstore")
	if cfg.RedisURL != "" {
		client, err := Dial(ctx, cfg.RedisURL, cfg.ProbeTimeout)
		if err == nil {
			logger.Info("tokenstore.backend", "backend", "redis", "url", redact.URL(cfg.RedisURL))
			return NewRedisStore(client, opts...)
		}
		logger.Warn("tokenstore.redis.probe_failed", "url", redact.URL(cfg.RedisURL), "error", err, "fallback", "memory")
	}
	logger.Info("tokenstore.backend", "backend", "memory", "max_entries", newOptions(opts).maxEntries)
	return NewMemoryStore(opts...)
}

// Dial parses a redis:// URL, applies timeouts and pings the server once.
func Dial(ctx context.Context, URL string, timeout time.Duration) (*redis.Client, error) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	options, err := redis.ParseURL(URL)
	if err != nil {
		return nil, err
	}
	options.DialTimeout = timeout
	options.ReadTimeout = timeout
	options.WriteTimeout = timeout
	client := redis.NewClient(options)
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err = client.Ping(probeCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
