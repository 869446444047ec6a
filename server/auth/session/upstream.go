package session

import (
	"context"
	"net/http"

	"github.com/viant/scy/auth/flow"
	"golang.org/x/oauth2"
)

// Upstream is the identity provider the gateway delegates authentication to.
type Upstream interface {
	AuthCodeURL(state, verifier string) (string, error)
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// OAuthUpstream talks to a standard OAuth2 provider with PKCE.
type OAuthUpstream struct {
	Config     *oauth2.Config
	HTTPClient *http.Client
}

// NewOAuthUpstream creates an upstream for config.
func NewOAuthUpstream(config *oauth2.Config, client *http.Client) *OAuthUpstream {
	return &OAuthUpstream{Config: config, HTTPClient: client}
}

func (u *OAuthUpstream) AuthCodeURL(state, verifier string) (string, error) {
	return flow.BuildAuthCodeURL(u.Config, flow.WithPKCE(true), flow.WithState(state), flow.WithCodeVerifier(verifier), flow.WithRedirectURI(u.Config.RedirectURL))
}

func (u *OAuthUpstream) Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error) {
	return flow.Exchange(u.context(ctx), u.Config, code, flow.WithPKCE(true), flow.WithCodeVerifier(verifier), flow.WithRedirectURI(u.Config.RedirectURL))
}

func (u *OAuthUpstream) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	return u.Config.TokenSource(u.context(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
}

func (u *OAuthUpstream) context(ctx context.Context) context.Context {
	if u.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, u.HTTPClient)
}
