package server

import (
	"context"
	"fmt"
	"net/url"

	"github.com/viant/mcpauth/internal/metrics"
	"github.com/viant/mcpauth/server/auth"
	"pkt.systems/pslog"
)

// Option is a function that configures the server.
type Option func(s *Server) error

// WithCORS replaces the default cross-origin policy.
func WithCORS(cors *Cors) Option {
	return func(s *Server) error {
		s.cors = cors
		return nil
	}
}

// WithAuthService mounts the OAuth endpoints of service.
func WithAuthService(service *auth.Service) Option {
	return func(s *Server) error {
		s.auth = service
		return nil
	}
}

// WithUpstream forwards resolved requests to the MCP server at rawURL.
func WithUpstream(rawURL string) Option {
	return func(s *Server) error {
		if rawURL == "" {
			return nil
		}
		target, err := url.Parse(rawURL)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return fmt.Errorf("invalid upstream URL %q", rawURL)
		}
		s.upstream = target
		return nil
	}
}

// WithEndpoints sets the paths guarded by the resolver.
func WithEndpoints(paths ...string) Option {
	return func(s *Server) error {
		s.endpoints = paths
		return nil
	}
}

// WithReadiness adds a check consulted by /healthz.
func WithReadiness(check func(ctx context.Context) error) Option {
	return func(s *Server) error {
		s.readiness = check
		return nil
	}
}

func WithAddr(addr string) Option {
	return func(s *Server) error {
		s.addr = addr
		return nil
	}
}

func WithLogger(logger pslog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) error {
		s.metrics = m
		return nil
	}
}
