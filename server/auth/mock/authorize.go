package mock

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"net/url"
)

// defaultAuthorizeHandler approves every request and redirects back with a code.
// A login_hint query parameter overrides the subject of the issued token.
func (m *AuthorizationService) defaultAuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	clientID := query.Get("client_id")
	if clientID != m.ClientID {
		http.Error(w, "Invalid client ID", http.StatusBadRequest)
		return
	}
	redirectURI := query.Get("redirect_uri")
	if redirectURI == "" {
		http.Error(w, "Missing redirect URI", http.StatusBadRequest)
		return
	}
	subject := query.Get("login_hint")
	if subject == "" {
		subject = m.Subject
	}
	code := randomCode()
	m.mu.Lock()
	m.codes[code] = &issuedCode{subject: subject, clientID: clientID, redirectURI: redirectURI, codeChallenge: query.Get("code_challenge")}
	m.mu.Unlock()

	target, err := url.Parse(redirectURI)
	if err != nil {
		http.Error(w, "Invalid redirect URI", http.StatusBadRequest)
		return
	}
	values := target.Query()
	values.Set("code", code)
	if state := query.Get("state"); state != "" {
		values.Set("state", state)
	}
	target.RawQuery = values.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}

func randomCode() string {
	data := make([]byte, 16)
	_, _ = rand.Read(data)
	return base64.RawURLEncoding.EncodeToString(data)
}
