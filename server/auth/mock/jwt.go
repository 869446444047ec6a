package mock

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const refreshTokenTTL = 24 * time.Hour

// CreateAccessToken mints a signed access token for subject.
func (m *AuthorizationService) CreateAccessToken(subject string) (string, error) {
	token, err := m.createJWT(subject, "access_token", m.AccessTokenTTL)
	if err == nil {
		m.mu.Lock()
		m.issued++
		m.mu.Unlock()
	}
	return token, err
}

// CreateToken mints a signed token with arbitrary claims merged over the defaults.
func (m *AuthorizationService) CreateToken(claims jwt.MapClaims) (string, error) {
	now := time.Now()
	base := jwt.MapClaims{
		"iss": m.Issuer,
		"aud": m.ClientID,
		"iat": now.Unix(),
		"exp": now.Add(m.AccessTokenTTL).Unix(),
	}
	for k, v := range claims {
		if v == nil {
			delete(base, k)
			continue
		}
		base[k] = v
	}
	return m.sign(base)
}

// createJWT creates a signed JWT for subject with the given type and expiry
func (m *AuthorizationService) createJWT(subject, tokenType string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":       m.Issuer,
		"sub":       subject,
		"aud":       m.ClientID,
		"client_id": m.ClientID,
		"exp":       now.Add(expiry).Unix(),
		"iat":       now.Unix(),
		"typ":       tokenType,
		"jti":       randomCode(),
	}
	if tokenType == "access_token" {
		if m.FlatScope {
			claims["scope"] = joinScopes(m.AuthorizedScopes)
		} else {
			claims["access"] = map[string]interface{}{"scope": m.AuthorizedScopes}
		}
	}
	return m.sign(claims)
}

func (m *AuthorizationService) sign(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = m.KeyID
	return token.SignedString(m.PrivateKey)
}

func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}
