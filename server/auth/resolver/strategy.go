package resolver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/viant/mcpauth/server/auth/credential"
	"github.com/viant/mcpauth/server/auth/session"
	"github.com/viant/mcpauth/server/auth/verifier"
)

// Strategy produces an identity for a request. ok=false means the strategy has
// nothing to offer; a non-nil error ends resolution.
type Strategy interface {
	Source() credential.Source
	Resolve(ctx context.Context, r *http.Request, sessionID string) (identity *credential.Identity, ok bool, err error)
}

// Verifier validates bearer credentials.
type Verifier interface {
	Verify(ctx context.Context, token string, required ...string) (*credential.Identity, error)
}

// Bindings exposes session bindings.
type Bindings interface {
	Binding(sessionID string) (*session.Binding, bool)
}

// TokenLookup is the token store read used by session resolution.
type TokenLookup interface {
	FindSubjectByToken(ctx context.Context, token string) (string, bool)
}

// HeaderStrategy validates the request's own Authorization header.
type HeaderStrategy struct {
	Verifier Verifier
}

func (s *HeaderStrategy) Source() credential.Source { return credential.SourceHeader }

func (s *HeaderStrategy) Resolve(ctx context.Context, r *http.Request, _ string) (*credential.Identity, bool, error) {
	token, present := BearerToken(r)
	if !present {
		return nil, false, nil
	}
	if token == "" {
		return nil, true, fmt.Errorf("%w: authorization header is not a bearer credential", credential.ErrInvalidCredential)
	}
	identity, err := s.Verifier.Verify(ctx, token)
	return identity, true, err
}

// ConnectionStrategy reuses the identity cached for the connection.
type ConnectionStrategy struct {
	Cache *ConnectionCache
	Now   func() time.Time
}

func (s *ConnectionStrategy) Source() credential.Source { return credential.SourceConnection }

func (s *ConnectionStrategy) Resolve(_ context.Context, _ *http.Request, sessionID string) (*credential.Identity, bool, error) {
	if sessionID == "" {
		return nil, false, nil
	}
	identity, ok := s.Cache.Lookup(sessionID, s.Now())
	return identity, ok, nil
}

// SessionStrategy resolves the credential bound to the session. The binding
// only counts while the token store still maps its token to the same subject,
// so a retired or expired credential never resolves.
type SessionStrategy struct {
	Bindings Bindings
	Store    TokenLookup
	Now      func() time.Time
}

func (s *SessionStrategy) Source() credential.Source { return credential.SourceSession }

func (s *SessionStrategy) Resolve(ctx context.Context, _ *http.Request, sessionID string) (*credential.Identity, bool, error) {
	binding, ok := s.Bindings.Binding(sessionID)
	if !ok {
		return nil, false, nil
	}
	subject, ok := s.Store.FindSubjectByToken(ctx, binding.Token)
	if !ok || subject != binding.Subject {
		return nil, false, nil
	}
	claims, err := verifier.Decode(binding.Token)
	if err != nil {
		return nil, false, nil
	}
	identity := claims.Identity(binding.Token, credential.SourceSession)
	if identity.Expired(s.Now()) {
		return nil, false, nil
	}
	return identity, true, nil
}

// DefaultPATSubject names the identity of an opaque personal access token.
const DefaultPATSubject = "pat"

// PATStrategy injects a fixed personal access token for every request.
type PATStrategy struct {
	identity *credential.Identity
}

// NewPATStrategy builds the identity once; tokens that do not decode use DefaultPATSubject.
func NewPATStrategy(token string) *PATStrategy {
	identity := &credential.Identity{Token: token, Subject: DefaultPATSubject, Source: credential.SourcePAT}
	if claims, err := verifier.Decode(token); err == nil {
		identity = claims.Identity(token, credential.SourcePAT)
	}
	return &PATStrategy{identity: identity}
}

func (s *PATStrategy) Source() credential.Source { return credential.SourcePAT }

func (s *PATStrategy) Resolve(context.Context, *http.Request, string) (*credential.Identity, bool, error) {
	return s.identity.Clone(credential.SourcePAT), true, nil
}
