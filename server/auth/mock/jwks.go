package mock

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/viant/mcp-protocol/oauth2/meta"
)

// JSONWebKeySet returns the public signing key set.
func (m *AuthorizationService) JSONWebKeySet() meta.JSONWebKeySet {
	pubKey := m.PrivateKey.Public().(*rsa.PublicKey)
	nB64 := base64.RawURLEncoding.EncodeToString(pubKey.N.Bytes())
	eB64 := base64.RawURLEncoding.EncodeToString(new(big.Int).SetInt64(int64(pubKey.E)).Bytes())
	jwk := meta.JSONWebKey{Kty: "RSA", Use: "sig", Alg: "RS256", Kid: m.KeyID, N: nB64, E: eB64}
	return meta.JSONWebKeySet{Keys: []meta.JSONWebKey{jwk}}
}

// defaultJwksHandler handles /jwks requests by exposing the server's public key
func (m *AuthorizationService) defaultJwksHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.JSONWebKeySet())
}
