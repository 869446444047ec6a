package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/viant/jsonrpc"
	"github.com/viant/mcp-protocol/schema"
	"github.com/viant/mcpauth/internal/logging"
	"github.com/viant/mcpauth/internal/metrics"
	"github.com/viant/mcpauth/internal/redact"
	"github.com/viant/mcpauth/server/auth/credential"
	"pkt.systems/pslog"
)

// ProtectedResourcePath is where clients discover the authorization server.
const ProtectedResourcePath = "/.well-known/oauth-protected-resource"

// Option configures a Resolver.
type Option func(r *Resolver)

// WithAnonymous lets requests without any credential through.
func WithAnonymous(allowed bool) Option {
	return func(r *Resolver) { r.allowAnonymous = allowed }
}

func WithLogger(logger pslog.Logger) Option {
	return func(r *Resolver) { r.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithSessionLocator overrides how the session id is read from a request.
func WithSessionLocator(locate func(*http.Request) string) Option {
	return func(r *Resolver) { r.sessionID = locate }
}

// WithRequiredScopes advertises scopes in authentication challenges.
func WithRequiredScopes(scopes ...string) Option {
	return func(r *Resolver) { r.scopes = scopes }
}

// Resolver runs the strategy chain for each request.
type Resolver struct {
	strategies     []Strategy
	cache          *ConnectionCache
	allowAnonymous bool
	scopes         []string
	sessionID      func(*http.Request) string
	logger         pslog.Logger
	metrics        *metrics.Metrics
}

// New creates a resolver. The cache, when not nil, is filled with every
// identity resolved by a non-cache strategy.
func New(cache *ConnectionCache, strategies []Strategy, opts ...Option) *Resolver {
	ret := &Resolver{strategies: strategies, cache: cache, sessionID: SessionID}
	for _, opt := range opts {
		opt(ret)
	}
	ret.logger = logging.Subsystem(ret.logger, "resolver")
	return ret
}

// NewDefault wires header, connection and session strategies in priority order.
func NewDefault(v Verifier, bindings Bindings, tokens TokenLookup, opts ...Option) *Resolver {
	cache := NewConnectionCache()
	strategies := []Strategy{
		&HeaderStrategy{Verifier: v},
		&ConnectionStrategy{Cache: cache, Now: time.Now},
		&SessionStrategy{Bindings: bindings, Store: tokens, Now: time.Now},
	}
	return New(cache, strategies, opts...)
}

// Cache returns the connection cache, nil when the resolver has none.
func (r *Resolver) Cache() *ConnectionCache {
	return r.cache
}

// Resolve returns the identity for r. A nil identity with a nil error means
// anonymous access; ErrInsufficientScope comes with the identity that lacks it.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*credential.Identity, error) {
	sessionID := r.sessionID(req)
	for _, strategy := range r.strategies {
		source := string(strategy.Source())
		identity, ok, err := strategy.Resolve(ctx, req, sessionID)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			r.rejected(source, sessionID, req, err)
			if errors.Is(err, credential.ErrInsufficientScope) {
				return identity, err
			}
			return nil, err
		}
		if !ok {
			continue
		}
		if r.cache != nil && identity.Source != credential.SourceConnection {
			r.cache.Remember(sessionID, identity)
		}
		r.metrics.Resolution(source, "ok")
		return identity, nil
	}
	if r.allowAnonymous {
		r.metrics.Resolution("none", "anonymous")
		return nil, nil
	}
	r.metrics.Resolution("none", "required")
	return nil, credential.ErrAuthenticationRequired
}

func (r *Resolver) rejected(source, sessionID string, req *http.Request, err error) {
	token, _ := BearerToken(req)
	switch {
	case errors.Is(err, credential.ErrExpiredCredential):
		r.metrics.Resolution(source, "expired")
		r.logger.Warn("resolver.header.expired", "session", sessionID, "token", redact.Token(token))
	case errors.Is(err, credential.ErrInsufficientScope):
		r.metrics.Resolution(source, "insufficient_scope")
		r.logger.Warn("resolver.header.scope", "session", sessionID, "token", redact.Token(token), "error", err)
	default:
		r.metrics.Resolution(source, "invalid")
		r.logger.Warn("resolver.header.invalid", "session", sessionID, "token", redact.Token(token), "error", err)
	}
	if r.cache != nil && sessionID != "" {
		r.cache.Forget(sessionID)
	}
}

// Middleware resolves each request and attaches the identity to its context.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		identity, err := r.Resolve(req.Context(), req)
		if err != nil {
			if req.Context().Err() != nil {
				return
			}
			r.challenge(w, req, err)
			return
		}
		if identity != nil {
			req = req.WithContext(credential.WithIdentity(req.Context(), identity))
		}
		next.ServeHTTP(w, req)
	})
}

func (r *Resolver) challenge(w http.ResponseWriter, req *http.Request, err error) {
	proto, host := ProtoAndHost(req)
	params := []string{fmt.Sprintf(`resource_metadata="%s://%s%s"`, proto, host, ProtectedResourcePath)}
	status := http.StatusUnauthorized
	switch {
	case errors.Is(err, credential.ErrInsufficientScope):
		status = http.StatusForbidden
		params = append(params, `error="insufficient_scope"`)
	case errors.Is(err, credential.ErrAuthenticationRequired):
	default:
		params = append(params, `error="invalid_token"`)
	}
	if len(r.scopes) > 0 {
		params = append(params, fmt.Sprintf(`scope="%s"`, strings.Join(r.scopes, " ")))
	}
	w.Header().Set("MCP-Protocol-Version", schema.LatestProtocolVersion)
	w.Header().Set("WWW-Authenticate", "Bearer "+strings.Join(params, ", "))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(&jsonrpc.Error{
		Code:    schema.Unauthorized,
		Message: "Unauthorized: protected resource requires authorization",
		Data:    []byte(fmt.Sprintf(`{"error":%q}`, err.Error())),
	})
}
