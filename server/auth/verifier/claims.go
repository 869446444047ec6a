package verifier

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/viant/mcpauth/internal/conv"
	"github.com/viant/mcpauth/server/auth/credential"
)

// Claims is the subset of token claims the gateway relies on.
type Claims struct {
	Subject   string
	Issuer    string
	Audience  []string
	Scopes    []string
	ClientID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Identity converts claims into a request identity.
func (c *Claims) Identity(token string, source credential.Source) *credential.Identity {
	return &credential.Identity{
		Token:     token,
		Subject:   c.Subject,
		Scopes:    c.Scopes,
		ClientID:  c.ClientID,
		IssuedAt:  c.IssuedAt,
		ExpiresAt: c.ExpiresAt,
		Source:    source,
	}
}

// Decode parses token claims without verifying the signature. It is meant for
// credentials the gateway itself obtained from the provider.
func Decode(token string) (*Claims, error) {
	mapClaims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mapClaims); err != nil {
		return nil, fmt.Errorf("%w: %v", credential.ErrMalformedClaims, err)
	}
	claims := claimsOf(mapClaims)
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing sub claim", credential.ErrMalformedClaims)
	}
	return claims, nil
}

func claimsOf(m jwt.MapClaims) *Claims {
	ret := &Claims{}
	ret.Subject, _ = m.GetSubject()
	ret.Issuer, _ = m.GetIssuer()
	if audience, err := m.GetAudience(); err == nil {
		ret.Audience = audience
	}
	if v, ok := conv.AsInt64(m["iat"]); ok {
		ret.IssuedAt = time.Unix(v, 0)
	}
	if v, ok := conv.AsInt64(m["exp"]); ok {
		ret.ExpiresAt = time.Unix(v, 0)
	}
	for _, key := range []string{"client_id", "azp"} {
		if v, ok := m[key].(string); ok && v != "" {
			ret.ClientID = v
			break
		}
	}
	ret.Scopes = scopesOf(m)
	return ret
}

// scopesOf prefers access.scope and falls back to the flat scope claim.
func scopesOf(m jwt.MapClaims) []string {
	if access, ok := m["access"].(map[string]interface{}); ok {
		if scopes := conv.AsStrings(access["scope"]); len(scopes) > 0 {
			return scopes
		}
	}
	if scopes := conv.AsStrings(m["scope"]); len(scopes) > 0 {
		return scopes
	}
	return conv.AsStrings(m["scp"])
}
