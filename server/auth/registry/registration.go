package registry

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const (
	// AuthMethodNone marks a public client that presents no secret.
	AuthMethodNone = "none"
	// AuthMethodSecretPost sends client_secret in the form body.
	AuthMethodSecretPost = "client_secret_post"
	// AuthMethodSecretBasic sends the secret through HTTP basic auth.
	AuthMethodSecretBasic = "client_secret_basic"
	// DefaultRedirectURI is assigned to restored registrations that lost their redirect URIs.
	DefaultRedirectURI = "http://127.0.0.1"
)

// DefaultGrantTypes applies to registrations that omit grant_types.
var DefaultGrantTypes = []string{"authorization_code", "refresh_token"}

// ErrInvalidRegistration reports a registration rejected by Validate.
var ErrInvalidRegistration = errors.New("invalid client registration")

// Registration is a registered OAuth client.
type Registration struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientName              string   `json:"client_name,omitempty"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method,omitempty"`
	Scope                   string   `json:"scope,omitempty"`
	ClientIDIssuedAt        int64    `json:"client_id_issued_at,omitempty"`
}

// Normalize fills defaults for restored or statically configured entries.
func (r *Registration) Normalize() {
	if len(r.GrantTypes) == 0 {
		r.GrantTypes = append([]string(nil), DefaultGrantTypes...)
	}
	if r.TokenEndpointAuthMethod == "" {
		if r.ClientSecret == "" {
			r.TokenEndpointAuthMethod = AuthMethodNone
		} else {
			r.TokenEndpointAuthMethod = AuthMethodSecretPost
		}
	}
	if len(r.RedirectURIs) == 0 {
		r.RedirectURIs = []string{DefaultRedirectURI}
	}
}

// Validate checks the fields every stored registration must carry.
func (r *Registration) Validate() error {
	if strings.TrimSpace(r.ClientID) == "" {
		return fmt.Errorf("%w: client_id is required", ErrInvalidRegistration)
	}
	if len(r.RedirectURIs) == 0 {
		return fmt.Errorf("%w: redirect_uris must not be empty", ErrInvalidRegistration)
	}
	for _, uri := range r.RedirectURIs {
		parsed, err := url.Parse(uri)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%w: invalid redirect uri %q", ErrInvalidRegistration, uri)
		}
		if parsed.Fragment != "" {
			return fmt.Errorf("%w: redirect uri %q must not contain a fragment", ErrInvalidRegistration, uri)
		}
	}
	if !r.IsPublic() && r.ClientSecret == "" {
		return fmt.Errorf("%w: client_secret is required for %s", ErrInvalidRegistration, r.TokenEndpointAuthMethod)
	}
	return nil
}

// IsPublic reports whether the client authenticates with method none.
func (r *Registration) IsPublic() bool {
	return r.TokenEndpointAuthMethod == AuthMethodNone
}

// AllowsRedirect reports whether uri exactly matches a registered redirect URI.
func (r *Registration) AllowsRedirect(uri string) bool {
	for _, candidate := range r.RedirectURIs {
		if candidate == uri {
			return true
		}
	}
	return false
}

// AllowsGrant reports whether grant is listed in grant_types.
func (r *Registration) AllowsGrant(grant string) bool {
	for _, candidate := range r.GrantTypes {
		if candidate == grant {
			return true
		}
	}
	return false
}

// Authenticate verifies the presented secret; public clients always pass.
func (r *Registration) Authenticate(secret string) bool {
	if r.IsPublic() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(r.ClientSecret), []byte(secret)) == 1
}

// Clone returns a deep copy.
func (r *Registration) Clone() *Registration {
	ret := *r
	ret.RedirectURIs = append([]string(nil), r.RedirectURIs...)
	ret.GrantTypes = append([]string(nil), r.GrantTypes...)
	return &ret
}
