package mock

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// defaultTokenHandler handles /token requests
func (m *AuthorizationService) defaultTokenHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data", http.StatusBadRequest)
		return
	}
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = r.FormValue("client_id")
		clientSecret = r.FormValue("client_secret")
	}
	if clientID != m.ClientID || clientSecret != m.ClientSecret {
		writeError(w, http.StatusUnauthorized, "invalid_client")
		return
	}
	var subject string
	switch r.FormValue("grant_type") {
	case "authorization_code":
		code := r.FormValue("code")
		m.mu.Lock()
		issued, found := m.codes[code]
		delete(m.codes, code)
		m.mu.Unlock()
		if !found || (r.FormValue("redirect_uri") != "" && issued.redirectURI != r.FormValue("redirect_uri")) {
			writeError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		if issued.codeChallenge != "" && challenge(r.FormValue("code_verifier")) != issued.codeChallenge {
			writeError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		subject = issued.subject
	case "refresh_token":
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(r.FormValue("refresh_token"), claims, func(t *jwt.Token) (interface{}, error) {
			return m.PrivateKey.Public(), nil
		})
		if err != nil || claims["typ"] != "refresh_token" {
			writeError(w, http.StatusBadRequest, "invalid_grant")
			return
		}
		subject, _ = claims.GetSubject()
	default:
		writeError(w, http.StatusBadRequest, "unsupported_grant_type")
		return
	}
	accessToken, err := m.CreateAccessToken(subject)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	refreshToken, err := m.createJWT(subject, "refresh_token", refreshTokenTTL)
	if err != nil {
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	response := map[string]interface{}{
		"access_token":  accessToken,
		"token_type":    "Bearer",
		"refresh_token": refreshToken,
		"expires_in":    int(m.AccessTokenTTL.Seconds()),
		"scope":         joinScopes(m.AuthorizedScopes),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
