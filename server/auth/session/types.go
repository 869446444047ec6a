package session

import (
	"time"
)

// AuthorizeRequest carries the parameters of a client's authorize call.
type AuthorizeRequest struct {
	SessionID           string
	ClientID            string
	RedirectURI         string
	ResponseType        string
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
}

// TokenRequest carries the parameters of a client's token call.
type TokenRequest struct {
	GrantType    string
	Code         string
	RedirectURI  string
	CodeVerifier string
	RefreshToken string
	ClientID     string
	ClientSecret string
	SessionID    string
}

// TokenResponse is returned to the client after a successful grant.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Subject      string `json:"-"`
}

// authorization is the INITIATED payload, keyed by the upstream state value.
type authorization struct {
	RedirectURI         string
	RedirectProvided    bool
	State               string
	Scope               string
	CodeChallenge       string
	CodeChallengeMethod string
	UpstreamVerifier    string
}

// grant is the CODE_ISSUED payload, keyed by the gateway code.
type grant struct {
	authorization
	UpstreamCode string
}

// Binding links a transport session to a credential.
type Binding struct {
	SessionID string
	Token     string
	Subject   string
	ClientID  string
	BoundAt   time.Time
}

// liveCredential is an upstream credential the gateway handed out.
type liveCredential struct {
	Token    string
	ClientID string
	AddedAt  time.Time
}

// ReconcileResult summarizes a reconciliation pass.
type ReconcileResult struct {
	Registered int
	Skipped    int
}

// CleanupResult summarizes a cleanup pass.
type CleanupResult struct {
	Orphans  int
	Bindings int
	Pending  int
	Store    int
}
