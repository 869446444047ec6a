package auth

import (
	"net/http"

	"github.com/viant/mcpauth/server/auth/session"
)

// AuthorizeHandler starts an authorization attempt and redirects to the upstream provider.
func (s *Service) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid form data")
		return
	}
	req := &session.AuthorizeRequest{
		SessionID:           s.SessionIdProvider(r),
		ClientID:            r.FormValue("client_id"),
		RedirectURI:         r.FormValue("redirect_uri"),
		ResponseType:        r.FormValue("response_type"),
		State:               r.FormValue("state"),
		Scope:               r.FormValue("scope"),
		CodeChallenge:       r.FormValue("code_challenge"),
		CodeChallengeMethod: r.FormValue("code_challenge_method"),
	}
	target, err := s.Coordinator.Begin(r.Context(), req)
	if err != nil {
		s.logger.Warn("oauth.authorize.rejected", "client_id", req.ClientID, "session", req.SessionID, "error", err)
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// CallbackHandler receives the upstream redirect and forwards the client to its redirect URI.
func (s *Service) CallbackHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	query := r.URL.Query()
	target, err := s.Coordinator.Callback(r.Context(), query.Get("state"), query.Get("code"), query.Get("error"))
	if err != nil {
		s.logger.Warn("oauth.callback.rejected", "error", err)
		s.writeError(w, err)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}
