package verifier

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/mcpauth/server/auth/credential"
)

const (
	testIssuer   = "https://idp.example"
	testAudience = "gateway"
)

func signToken(t *testing.T, key *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func baseClaims(subject string) jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"iss": testIssuer,
		"aud": testAudience,
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
}

func with(claims jwt.MapClaims, key string, value interface{}) jwt.MapClaims {
	ret := jwt.MapClaims{}
	for k, v := range claims {
		ret[k] = v
	}
	if value == nil {
		delete(ret, key)
	} else {
		ret[key] = value
	}
	return ret
}

func TestVerifier_Verify(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	keys := StaticKeys{"k1": &key.PublicKey}
	v := New(keys, WithIssuer(testIssuer), WithAudience(testAudience), WithRequiredScopes("view"))

	nested := with(baseClaims("user-42"), "access", map[string]interface{}{"scope": []string{"view", "download"}})

	testCases := []struct {
		description string
		token       string
		required    []string
		subject     string
		scopes      []string
		expectErr   error
	}{
		{
			description: "nested access scope",
			token:       signToken(t, key, "k1", nested),
			subject:     "user-42",
			scopes:      []string{"view", "download"},
		},
		{
			description: "nested scope preferred over flat scope",
			token:       signToken(t, key, "k1", with(nested, "scope", "modify")),
			subject:     "user-42",
			scopes:      []string{"view", "download"},
		},
		{
			description: "flat scope fallback",
			token:       signToken(t, key, "k1", with(baseClaims("user-7"), "scope", "view modify")),
			subject:     "user-7",
			scopes:      []string{"view", "modify"},
		},
		{
			description: "missing caller scope",
			token:       signToken(t, key, "k1", nested),
			required:    []string{"modify"},
			subject:     "user-42",
			scopes:      []string{"view", "download"},
			expectErr:   credential.ErrInsufficientScope,
		},
		{
			description: "missing configured scope",
			token:       signToken(t, key, "k1", with(baseClaims("user-7"), "scope", "download")),
			subject:     "user-7",
			scopes:      []string{"download"},
			expectErr:   credential.ErrInsufficientScope,
		},
		{
			description: "expired",
			token:       signToken(t, key, "k1", with(nested, "exp", time.Now().Add(-time.Minute).Unix())),
			expectErr:   credential.ErrExpiredCredential,
		},
		{
			description: "missing expiry",
			token:       signToken(t, key, "k1", with(nested, "exp", nil)),
			expectErr:   credential.ErrInvalidCredential,
		},
		{
			description: "wrong issuer",
			token:       signToken(t, key, "k1", with(nested, "iss", "https://evil.example")),
			expectErr:   credential.ErrInvalidCredential,
		},
		{
			description: "wrong audience",
			token:       signToken(t, key, "k1", with(nested, "aud", "someone-else")),
			expectErr:   credential.ErrInvalidCredential,
		},
		{
			description: "foreign signature",
			token:       signToken(t, other, "k1", nested),
			expectErr:   credential.ErrInvalidCredential,
		},
		{
			description: "unknown kid",
			token:       signToken(t, key, "k9", nested),
			expectErr:   credential.ErrInvalidCredential,
		},
		{
			description: "missing subject",
			token:       signToken(t, key, "k1", with(nested, "sub", nil)),
			expectErr:   credential.ErrInvalidCredential,
		},
		{
			description: "garbage",
			token:       "not-a-jwt",
			expectErr:   credential.ErrInvalidCredential,
		},
		{
			description: "empty",
			token:       "  ",
			expectErr:   credential.ErrAuthenticationRequired,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			identity, err := v.Verify(context.Background(), testCase.token, testCase.required...)
			if testCase.expectErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, testCase.expectErr)
				assert.True(t, credential.IsUnauthenticated(err) != (testCase.expectErr == credential.ErrInsufficientScope))
			} else {
				require.NoError(t, err)
			}
			if testCase.subject == "" {
				assert.Nil(t, identity)
				return
			}
			require.NotNil(t, identity)
			assert.Equal(t, testCase.subject, identity.Subject)
			assert.Equal(t, testCase.scopes, identity.Scopes)
			assert.Equal(t, testCase.token, identity.Token)
			assert.Equal(t, credential.SourceHeader, identity.Source)
		})
	}
}

func TestVerifier_Leeway(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	token := signToken(t, key, "", with(baseClaims("user-1"), "exp", time.Now().Add(-10*time.Second).Unix()))

	strict := New(StaticKeys{"k1": &key.PublicKey})
	_, err = strict.Verify(context.Background(), token)
	assert.ErrorIs(t, err, credential.ErrExpiredCredential)

	lenient := New(StaticKeys{"k1": &key.PublicKey}, WithLeeway(time.Minute))
	identity, err := lenient.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", identity.Subject)
}

func TestDecode(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	issued := time.Now().Truncate(time.Second)
	token := signToken(t, key, "k1", jwt.MapClaims{
		"sub":       "user-42",
		"client_id": "gateway",
		"iat":       issued.Unix(),
		"exp":       issued.Add(time.Hour).Unix(),
		"access":    map[string]interface{}{"scope": "view download"},
	})

	claims, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "user-42", claims.Subject)
	assert.Equal(t, "gateway", claims.ClientID)
	assert.Equal(t, []string{"view", "download"}, claims.Scopes)
	assert.True(t, claims.ExpiresAt.Equal(issued.Add(time.Hour)))

	_, err = Decode(signToken(t, key, "k1", jwt.MapClaims{"scope": "view"}))
	assert.ErrorIs(t, err, credential.ErrMalformedClaims)

	_, err = Decode("opaque-token")
	assert.ErrorIs(t, err, credential.ErrMalformedClaims)
}

func TestRemoteKeySet(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	public, err := jwk.FromRaw(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, public.Set(jwk.KeyIDKey, "k1"))
	require.NoError(t, public.Set(jwk.AlgorithmKey, "RS256"))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(public))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(set)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	keys, err := NewRemoteKeySet(ctx, server.URL, server.Client())
	require.NoError(t, err)

	v := New(keys, WithIssuer(testIssuer))
	identity, err := v.Verify(ctx, signToken(t, key, "k1", with(baseClaims("user-42"), "scope", "view")))
	require.NoError(t, err)
	assert.Equal(t, "user-42", identity.Subject)

	_, err = keys.Key(ctx, "missing")
	assert.Error(t, err)
}
