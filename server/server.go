package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/metrics"
	"github.com/viant/mcpauth/server/auth"
	"github.com/viant/mcpauth/server/auth/resolver"
	"pkt.systems/pslog"
)

const (
	// DefaultAddr binds to loopback only.
	DefaultAddr = "127.0.0.1:9000"
	HealthPath  = "/healthz"
	MetricsPath = "/metrics"
)

// DefaultEndpoints are the MCP transport paths guarded by the resolver.
var DefaultEndpoints = []string{"/mcp", "/sse", "/message"}

// Server is the gateway HTTP surface.
type Server struct {
	resolver  *resolver.Resolver
	auth      *auth.Service
	cors      *Cors
	upstream  *url.URL
	endpoints []string
	readiness func(ctx context.Context) error
	addr      string
	logger    pslog.Logger
	metrics   *metrics.Metrics
}

// New creates a Server guarding its endpoints with r.
func New(r *resolver.Resolver, options ...Option) (*Server, error) {
	if r == nil {
		return nil, errors.New("no resolver specified")
	}
	s := &Server{
		resolver:  r,
		cors:      DefaultCors(),
		endpoints: DefaultEndpoints,
		addr:      DefaultAddr,
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	s.logger = logging.Subsystem(s.logger, "http")
	return s, nil
}

// Handler builds the gateway mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.auth != nil {
		s.auth.RegisterHandlers(mux)
	}
	mux.HandleFunc(HealthPath, s.health)
	mux.Handle(MetricsPath, s.metrics.Handler())

	var protected http.Handler = http.HandlerFunc(identityHandler)
	if s.upstream != nil {
		protected = newProxy(s.upstream, s.logger)
	}
	protected = ChainMiddlewareHandlers(protected, protocolVersionMiddleware(), s.resolver.Middleware)
	for _, endpoint := range s.endpoints {
		mux.Handle(endpoint, protected)
	}

	var middlewares []Middleware
	middlewares = append(middlewares, accessLogMiddleware(s.logger))
	if s.cors != nil {
		middlewares = append(middlewares, s.cors.Middleware, originValidationMiddleware(s.cors.AllowOrigins, s.logger))
	}
	return ChainMiddlewareHandlers(mux, middlewares...)
}

// HTTP returns an http.Server for the gateway listening on addr, or the
// configured address when addr is empty.
func (s *Server) HTTP(addr string) *http.Server {
	if addr == "" {
		addr = s.addr
	}
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.readiness != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.readiness(ctx); err != nil {
			s.logger.Warn("http.health.degraded", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, &healthResponse{Status: "degraded", Error: err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, &healthResponse{Status: "ok"})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
