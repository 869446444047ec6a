package server

import (
	"net/http"

	"github.com/viant/mcp-protocol/schema"
)

// ProtocolVersionHeader carries the negotiated MCP protocol version.
const ProtocolVersionHeader = "MCP-Protocol-Version"

// protocolVersionMiddleware rejects an explicit version other than the latest
// one and always announces the latest version on the response.
func protocolVersionMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			version := r.Header.Get(ProtocolVersionHeader)
			if version != "" && version != schema.LatestProtocolVersion {
				http.Error(w, "invalid MCP-Protocol-Version", http.StatusBadRequest)
				return
			}
			w.Header().Set(ProtocolVersionHeader, schema.LatestProtocolVersion)
			next.ServeHTTP(w, r)
		})
	}
}
