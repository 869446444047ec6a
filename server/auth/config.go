package auth

import (
	"net/url"
	"strings"
)

// Config is used to configure the OAuth surface
type Config struct {
	// ServerURL is the public base URL of the gateway; derived from the request when empty.
	ServerURL string
	// RequiredScopes are advertised and assigned to registrations without a scope.
	RequiredScopes []string
	// ResourcePath is appended to the base URL to form the protected resource identifier.
	ResourcePath string
}

// NormalizeServerURL trims a trailing /mcp endpoint and maps localhost to the
// loopback address so redirect URIs compare equal.
func NormalizeServerURL(raw string) string {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	raw = strings.TrimSuffix(raw, "/mcp")
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return raw
	}
	if parsed.Hostname() == "localhost" {
		host := "127.0.0.1"
		if port := parsed.Port(); port != "" {
			host += ":" + port
		}
		parsed.Host = host
	}
	return parsed.String()
}
