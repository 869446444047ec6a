// Package pending keeps short-lived authorization state between the
// redirects of an authorization-code round-trip.
//
// Entries are keyed by an opaque id (a state value or an authorization code),
// grouped by the transport session that started them, and consumed at most
// once. Expired entries are rejected on consumption and purged by Sweep.
package pending
