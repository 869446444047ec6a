package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/viant/mcpauth/server/auth/registry"
)

const clientSecretBytes = 32

type registrationRequest struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope"`
}

type registrationResponse struct {
	*registry.Registration
	ClientSecretExpiresAt int64 `json:"client_secret_expires_at"`
}

// RegisterHandler implements dynamic client registration.
func (s *Service) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	var req registrationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_client_metadata", "invalid registration payload")
		return
	}
	if len(req.RedirectURIs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_redirect_uri", "redirect_uris must not be empty")
		return
	}
	method := req.TokenEndpointAuthMethod
	switch method {
	case "":
		method = registry.AuthMethodSecretPost
	case registry.AuthMethodNone, registry.AuthMethodSecretPost, registry.AuthMethodSecretBasic:
	default:
		writeJSONError(w, http.StatusBadRequest, "invalid_client_metadata", "unsupported token_endpoint_auth_method")
		return
	}
	registration := &registry.Registration{
		ClientID:                uuid.NewString(),
		ClientName:              req.ClientName,
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              req.GrantTypes,
		TokenEndpointAuthMethod: method,
		Scope:                   req.Scope,
		ClientIDIssuedAt:        time.Now().Unix(),
	}
	if registration.Scope == "" {
		registration.Scope = scopeString(s.RequiredScopes)
	}
	if method != registry.AuthMethodNone {
		secret, err := newClientSecret()
		if err != nil {
			s.writeError(w, err)
			return
		}
		registration.ClientSecret = secret
	}
	if err := s.Clients.Register(r.Context(), registration); err != nil {
		if errors.Is(err, registry.ErrInvalidRegistration) {
			writeJSONError(w, http.StatusBadRequest, "invalid_client_metadata", err.Error())
			return
		}
		s.writeError(w, err)
		return
	}
	s.logger.Info("oauth.register", "client_id", registration.ClientID, "method", method, "redirect_uris", len(registration.RedirectURIs))
	writeJSON(w, http.StatusCreated, &registrationResponse{Registration: registration})
}

func newClientSecret() (string, error) {
	data := make([]byte, clientSecretBytes)
	if _, err := rand.Read(data); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}
