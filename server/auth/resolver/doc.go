// Package resolver decides which credential applies to an inbound request.
//
// Strategies are tried in a fixed order: the request's own bearer header,
// the identity cached for the connection, then the credential bound to the
// connection's session. A header that fails validation ends resolution even
// when a later strategy could supply an identity. The resolved identity is
// attached to the request context for downstream handlers.
package resolver
