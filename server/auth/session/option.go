package session

import (
	"time"

	"github.com/viant/mcpauth/internal/metrics"
	"pkt.systems/pslog"
)

const (
	// DefaultOrphanGrace protects credentials whose store write may still be in flight.
	DefaultOrphanGrace = 30 * time.Second
	// DefaultMaxTokenTTL caps how long a subject mapping is kept.
	DefaultMaxTokenTTL = time.Hour
	// DefaultCodeTTL bounds each redirect hop.
	DefaultCodeTTL = 5 * time.Minute
)

// Option configures a Coordinator.
type Option func(c *Coordinator)

func WithLogger(logger pslog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithOrphanGrace(grace time.Duration) Option {
	return func(c *Coordinator) {
		if grace >= 0 {
			c.orphanGrace = grace
		}
	}
}

func WithMaxTokenTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.maxTokenTTL = ttl
		}
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(c *Coordinator) {
		if ttl > 0 {
			c.codeTTL = ttl
		}
	}
}

// WithRequireSession rejects authorize calls that carry no session id.
func WithRequireSession(required bool) Option {
	return func(c *Coordinator) { c.requireSession = required }
}
