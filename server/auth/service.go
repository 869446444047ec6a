package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/metrics"
	"github.com/viant/mcpauth/server/auth/registry"
	"github.com/viant/mcpauth/server/auth/resolver"
	"github.com/viant/mcpauth/server/auth/session"
	"pkt.systems/pslog"
)

// Endpoint paths served by the Service.
const (
	RegisterPath           = "/register"
	AuthorizePath          = "/authorize"
	CallbackPath           = "/oauth/callback"
	TokenPath              = "/token"
	LogoutPath             = "/logout"
	AuthServerMetadataPath = "/.well-known/oauth-authorization-server"
)

// Service acts as a broker between downstream clients and the upstream provider.
type Service struct {
	*Config
	Coordinator       *session.Coordinator
	Clients           *registry.Catalog
	SessionIdProvider func(r *http.Request) string
	logger            pslog.Logger
	metrics           *metrics.Metrics
}

// Option configures the Service.
type Option func(s *Service)

func WithLogger(logger pslog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// New creates the OAuth surface over coordinator and clients.
func New(config *Config, coordinator *session.Coordinator, clients *registry.Catalog, opts ...Option) *Service {
	if config == nil {
		config = &Config{}
	}
	ret := &Service{
		Config:            config,
		Coordinator:       coordinator,
		Clients:           clients,
		SessionIdProvider: resolver.SessionID,
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.logger = logging.Subsystem(ret.logger, "oauth")
	return ret
}

// RegisterHandlers mounts every OAuth endpoint on mux.
func (s *Service) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc(RegisterPath, s.RegisterHandler)
	mux.HandleFunc(AuthorizePath, s.AuthorizeHandler)
	mux.HandleFunc(CallbackPath, s.CallbackHandler)
	mux.HandleFunc(TokenPath, s.TokenHandler)
	mux.HandleFunc(LogoutPath, s.LogoutHandler)
	mux.HandleFunc(AuthServerMetadataPath, s.AuthorizationServerHandler)
	mux.HandleFunc(resolver.ProtectedResourcePath, s.ProtectedResourcesHandler)
}

// baseURL returns the configured server URL or the one the request was addressed to.
func (s *Service) baseURL(r *http.Request) string {
	if s.ServerURL != "" {
		return NormalizeServerURL(s.ServerURL)
	}
	proto, host := resolver.ProtoAndHost(r)
	return proto + "://" + host
}

type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, errorResponse{Error: code, ErrorDescription: description})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Service) writeError(w http.ResponseWriter, err error) {
	if oauthErr, ok := err.(*session.Error); ok {
		if oauthErr.Status() >= http.StatusInternalServerError {
			s.logger.Error("oauth.error", "error", err)
		}
		writeJSONError(w, oauthErr.Status(), oauthErr.Code, oauthErr.Description)
		return
	}
	s.logger.Error("oauth.error", "error", err)
	writeJSONError(w, http.StatusInternalServerError, session.CodeServerError, "internal error")
}

func scopeString(scopes []string) string {
	return strings.Join(scopes, " ")
}
