package auth

import (
	"net/http"

	"github.com/viant/mcpauth/server/auth/session"
)

// TokenHandler exchanges gateway codes and refresh tokens for credentials.
func (s *Service) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "invalid form data")
		return
	}
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.PostFormValue("client_id")
		clientSecret = r.PostFormValue("client_secret")
	}
	req := &session.TokenRequest{
		GrantType:    r.PostFormValue("grant_type"),
		Code:         r.PostFormValue("code"),
		RedirectURI:  r.PostFormValue("redirect_uri"),
		CodeVerifier: r.PostFormValue("code_verifier"),
		RefreshToken: r.PostFormValue("refresh_token"),
		ClientID:     clientID,
		ClientSecret: clientSecret,
		SessionID:    s.SessionIdProvider(r),
	}
	resp, err := s.Coordinator.Exchange(r.Context(), req)
	if err != nil {
		s.logger.Warn("oauth.token.rejected", "client_id", clientID, "grant_type", req.GrantType, "error", err)
		s.writeError(w, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	writeJSON(w, http.StatusOK, resp)
}

// LogoutHandler unbinds the caller's session and forgets its subject mapping.
func (s *Service) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "invalid_request", "method not allowed")
		return
	}
	sessionID := s.SessionIdProvider(r)
	if sessionID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "session id is required")
		return
	}
	if err := s.Coordinator.Logout(r.Context(), sessionID); err != nil {
		s.logger.Warn("oauth.logout.failed", "session", sessionID, "error", err)
		writeJSONError(w, http.StatusServiceUnavailable, session.CodeTemporarilyUnavailable, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
