// Package mock provides an in-process OAuth2 identity provider used to
// exercise the gateway's authorization flow in tests.
//
// It issues RS256 access tokens carrying the nested access.scope claim,
// publishes its signing key as a JWKS document and enforces PKCE on code
// exchange, without performing real network round-trips.
package mock
