package server

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/viant/mcpauth/server/auth/credential"
	"pkt.systems/pslog"
)

// SubjectHeader carries the resolved subject to the downstream MCP server.
const SubjectHeader = "X-Mcp-Subject"

// ScopesHeader carries the resolved scopes, space separated.
const ScopesHeader = "X-Mcp-Scopes"

// newProxy forwards requests to target, replacing any caller supplied identity
// headers with the resolved identity.
func newProxy(target *url.URL, logger pslog.Logger) http.Handler {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			pr.Out.Header.Del(SubjectHeader)
			pr.Out.Header.Del(ScopesHeader)
			identity, ok := credential.IdentityFromContext(pr.In.Context())
			if !ok {
				pr.Out.Header.Del("Authorization")
				return
			}
			pr.Out.Header.Set("Authorization", "Bearer "+identity.Token)
			pr.Out.Header.Set(SubjectHeader, identity.Subject)
			if len(identity.Scopes) > 0 {
				pr.Out.Header.Set(ScopesHeader, strings.Join(identity.Scopes, " "))
			}
		},
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("proxy.upstream.failed", "path", r.URL.Path, "error", err)
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		},
	}
}

type identityResponse struct {
	Subject   string   `json:"subject,omitempty"`
	Scopes    []string `json:"scopes,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	Source    string   `json:"source,omitempty"`
	Anonymous bool     `json:"anonymous"`
}

// identityHandler answers protected requests when no downstream server is
// configured, echoing the resolved identity without its token.
func identityHandler(w http.ResponseWriter, r *http.Request) {
	identity, ok := credential.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, &identityResponse{Anonymous: true})
		return
	}
	writeJSON(w, http.StatusOK, &identityResponse{
		Subject:  identity.Subject,
		Scopes:   identity.Scopes,
		ClientID: identity.ClientID,
		Source:   string(identity.Source),
	})
}
