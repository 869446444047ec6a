// Package auth exposes the gateway's OAuth surface to downstream MCP clients.
//
// Clients register themselves dynamically, run authorization code with PKCE
// against the gateway and receive the upstream provider's credential. The
// gateway proxies the browser redirect to the upstream provider, and the
// session coordinator binds the client's transport session to the
// credential once the code is exchanged.
//
// Discovery documents are served under /.well-known so that clients that
// receive a 401 from the resolver can find the endpoints on their own.
package auth
