// Package verifier validates bearer credentials issued by the upstream
// identity provider.
//
// A Verifier checks the JWT signature against the provider's published key
// set, then issuer, audience and expiry, and finally that every required scope
// was granted. Scopes are read from the nested access.scope claim first and
// from the flat scope claim otherwise.
package verifier
