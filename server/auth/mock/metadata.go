package mock

import (
	"encoding/json"
	"net/http"

	"github.com/viant/mcp-protocol/oauth2/meta"
)

// defaultMetadataHandler serves the OAuth2 server metadata at /.well-known/oauth-authorization-server
func (m *AuthorizationService) defaultMetadataHandler(w http.ResponseWriter, _ *http.Request) {
	metadata := meta.AuthorizationServerMetadata{
		Issuer:                m.Issuer,
		AuthorizationEndpoint: m.Issuer + "/authorize",
		TokenEndpoint:         m.Issuer + "/token",
		JSONWebKeySetURI:      m.Issuer + "/jwks",
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(metadata)
}
