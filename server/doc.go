// Package server assembles the gateway HTTP surface.
//
// It mounts the OAuth endpoints of server/auth, guards the MCP endpoints with
// the credential resolver, and forwards resolved requests to the downstream
// MCP server:
//   - CORS and Origin validation on every route
//   - MCP-Protocol-Version validation on protected routes
//   - /healthz and /metrics
//
// Callers typically build a resolver and an OAuth service and then expose the
// gateway over HTTP:
//
//	s, _ := server.New(resolver, server.WithAuthService(service), server.WithUpstream(target))
//	log.Fatal(s.HTTP(":9000").ListenAndServe())
package server
