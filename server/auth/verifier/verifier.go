package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viant/mcpauth/server/auth/credential"
)

// DefaultMethods lists accepted signing algorithms.
var DefaultMethods = []string{"RS256", "RS384", "RS512", "PS256", "ES256"}

// Option configures a Verifier.
type Option func(v *Verifier)

// WithIssuer requires the iss claim to match.
func WithIssuer(issuer string) Option {
	return func(v *Verifier) { v.issuer = issuer }
}

// WithAudience requires aud to contain audience.
func WithAudience(audience string) Option {
	return func(v *Verifier) { v.audience = audience }
}

// WithRequiredScopes sets scopes every credential must carry.
func WithRequiredScopes(scopes ...string) Option {
	return func(v *Verifier) { v.required = append([]string(nil), scopes...) }
}

// WithLeeway tolerates clock skew.
func WithLeeway(leeway time.Duration) Option {
	return func(v *Verifier) { v.leeway = leeway }
}

// WithClock overrides the validation time source.
func WithClock(now func() time.Time) Option {
	return func(v *Verifier) { v.now = now }
}

// WithMethods overrides accepted signing algorithms.
func WithMethods(methods ...string) Option {
	return func(v *Verifier) { v.methods = methods }
}

// Verifier validates bearer credentials.
type Verifier struct {
	keys     KeySource
	issuer   string
	audience string
	required []string
	leeway   time.Duration
	methods  []string
	now      func() time.Time
}

// New creates a verifier resolving signing keys from keys.
func New(keys KeySource, opts ...Option) *Verifier {
	ret := &Verifier{keys: keys, methods: DefaultMethods, now: time.Now}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// RequiredScopes returns the configured scopes.
func (v *Verifier) RequiredScopes() []string {
	return append([]string(nil), v.required...)
}

// Verify validates token and returns its identity. ErrInsufficientScope is
// returned together with the identity so callers can tell the outcomes apart.
func (v *Verifier) Verify(ctx context.Context, token string, required ...string) (*credential.Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, credential.ErrAuthenticationRequired
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods(v.methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		options = append(options, jwt.WithAudience(v.audience))
	}
	mapClaims := jwt.MapClaims{}
	_, err := jwt.NewParser(options...).ParseWithClaims(token, mapClaims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Key(ctx, kid)
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", credential.ErrExpiredCredential, err)
		}
		return nil, fmt.Errorf("%w: %v", credential.ErrInvalidCredential, err)
	}
	claims := claimsOf(mapClaims)
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", credential.ErrInvalidCredential)
	}
	identity := claims.Identity(token, credential.SourceHeader)
	if missing := identity.MissingScopes(append(v.RequiredScopes(), required...)...); len(missing) > 0 {
		return identity, fmt.Errorf("%w: missing %s", credential.ErrInsufficientScope, strings.Join(missing, " "))
	}
	return identity, nil
}
