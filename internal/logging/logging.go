// Package logging holds pslog helpers shared by the gateway components.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"pkt.systems/pslog"
)

var (
	noOnce   sync.Once
	noLogger pslog.Logger
)

// Noop returns a disabled logger that discards all entries.
func Noop() pslog.Logger {
	noOnce.Do(func() {
		noLogger = pslog.NewWithOptions(io.Discard, pslog.Options{
			Mode:     pslog.ModeStructured,
			MinLevel: pslog.Disabled,
		})
	})
	return noLogger
}

// Ensure returns l when non-nil, otherwise a disabled logger.
func Ensure(l pslog.Logger) pslog.Logger {
	if l != nil {
		return l
	}
	return Noop()
}

// Subsystem attaches a dotted subsystem path to every entry emitted by l.
func Subsystem(l pslog.Logger, parts ...string) pslog.Logger {
	filtered := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.Trim(part, ". "); part != "" {
			filtered = append(filtered, part)
		}
	}
	if len(filtered) == 0 {
		return Ensure(l)
	}
	return Ensure(l).With("sys", strings.Join(filtered, "."))
}

// FromEnv builds the process logger; level and format are read from MCPAUTH_LOG_* variables.
func FromEnv() pslog.Logger {
	return pslog.LoggerFromEnv(
		pslog.WithEnvPrefix("MCPAUTH_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "mcpauth")
}

// NewWriter builds a structured logger writing to w, used by tests that assert on output.
func NewWriter(w io.Writer, level pslog.Level) pslog.Logger {
	return pslog.NewWithOptions(w, pslog.Options{Mode: pslog.ModeStructured, MinLevel: level})
}
