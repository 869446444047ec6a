package mock

import (
	"net/http"
)

// Handler routes HTTP requests to the appropriate mock OAuth2 server endpoints.
type Handler struct {
	Server *AuthorizationService
}

// ServeHTTP dispatches incoming HTTP requests based on URL path.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/token":
		if h.Server.TokenHandler != nil {
			h.Server.TokenHandler(w, r)
		} else {
			h.Server.defaultTokenHandler(w, r)
		}
	case "/authorize":
		if h.Server.AuthorizeHandler != nil {
			h.Server.AuthorizeHandler(w, r)
		} else {
			h.Server.defaultAuthorizeHandler(w, r)
		}
	case "/.well-known/oauth-authorization-server":
		if h.Server.MetadataHandler != nil {
			h.Server.MetadataHandler(w, r)
		} else {
			h.Server.defaultMetadataHandler(w, r)
		}
	case "/jwks":
		if h.Server.JwksHandler != nil {
			h.Server.JwksHandler(w, r)
		} else {
			h.Server.defaultJwksHandler(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}
