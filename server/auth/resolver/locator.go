package resolver

import (
	"net/http"
	"strings"

	"github.com/viant/jsonrpc/transport/server/http/session"
)

// SessionHeader carries the transport session id of streamable connections.
const SessionHeader = "Mcp-Session-Id"

var (
	streamingHeaderLocation = session.NewHeaderLocation(SessionHeader)
	sessionQueryLocation    = session.NewQueryLocation("session_id")
	streamingQueryLocation  = session.NewQueryLocation(SessionHeader)
)

// SessionID locates the transport session id: streamable header first, then
// the classic SSE query parameter, then the streamable query parameter.
func SessionID(r *http.Request) string {
	locator := session.Locator{}
	if ret, _ := locator.Locate(streamingHeaderLocation, r); ret != "" {
		return ret
	}
	if ret, _ := locator.Locate(sessionQueryLocation, r); ret != "" {
		return ret
	}
	if ret, _ := locator.Locate(streamingQueryLocation, r); ret != "" {
		return ret
	}
	return ""
}

// BearerToken returns the bearer value and whether an Authorization header was present at all.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", true
	}
	return strings.TrimSpace(header[7:]), true
}

// ProtoAndHost returns the externally visible scheme and host of r.
func ProtoAndHost(r *http.Request) (proto, host string) {
	// RFC 7239 Forwarded: proto=https;host=example.com
	if fwd := r.Header.Get("Forwarded"); fwd != "" {
		for _, part := range strings.Split(fwd, ";") {
			pair := strings.SplitN(strings.TrimSpace(part), "=", 2)
			if len(pair) != 2 {
				continue
			}
			switch strings.ToLower(pair[0]) {
			case "proto":
				proto = strings.ToLower(pair[1])
			case "host":
				host = pair[1]
			}
		}
	}
	if proto == "" {
		proto = strings.ToLower(r.Header.Get("X-Forwarded-Proto"))
	}
	if host == "" {
		host = r.Header.Get("X-Forwarded-Host")
	}
	if idx := strings.IndexByte(host, ','); idx > 0 {
		host = host[:idx]
	}
	if idx := strings.IndexByte(proto, ','); idx > 0 {
		proto = proto[:idx]
	}
	if proto == "" {
		if r.TLS != nil {
			proto = "https"
		} else {
			proto = "http"
		}
	}
	if host == "" {
		host = r.Host
	}
	return proto, host
}
