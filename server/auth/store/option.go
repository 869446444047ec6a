package store

import (
	"time"

	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/metrics"
	"pkt.systems/pslog"
)

const (
	// DefaultMaxEntries bounds the in-process store.
	DefaultMaxEntries = 10000
	// DefaultWarnFraction is the share of capacity that triggers the high-water warning.
	DefaultWarnFraction = 0.8
	// DefaultKeyPrefix namespaces Redis keys.
	DefaultKeyPrefix = "mcpauth:session"
	// DefaultScanCount is the SSCAN batch hint used by cleanup.
	DefaultScanCount = 100
)

// Option configures a token store.
type Option func(o *options)

type options struct {
	maxEntries   int
	warnFraction float64
	keyPrefix    string
	scanCount    int64
	now          func() time.Time
	logger       pslog.Logger
	metrics      *metrics.Metrics
}

func newOptions(opts []Option) *options {
	ret := &options{
		maxEntries:   DefaultMaxEntries,
		warnFraction: DefaultWarnFraction,
		keyPrefix:    DefaultKeyPrefix,
		scanCount:    DefaultScanCount,
		now:          time.Now,
		logger:       logging.Noop(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// WithMaxEntries sets the memory capacity used for usage warnings; non-positive disables them.
func WithMaxEntries(n int) Option {
	return func(o *options) {
		o.maxEntries = n
	}
}

// WithWarnFraction sets the high-water fraction; values outside (0,1) keep the default.
func WithWarnFraction(fraction float64) Option {
	return func(o *options) {
		if fraction > 0 && fraction < 1 {
			o.warnFraction = fraction
		}
	}
}

// WithKeyPrefix namespaces Redis keys.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.keyPrefix = prefix
		}
	}
}

// WithScanCount sets the SSCAN batch hint.
func WithScanCount(count int64) Option {
	return func(o *options) {
		if count > 0 {
			o.scanCount = count
		}
	}
}

// WithClock overrides the memory store time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithLogger(logger pslog.Logger) Option {
	return func(o *options) {
		o.logger = logging.Ensure(logger)
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
