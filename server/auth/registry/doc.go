// Package registry persists OAuth clients created through dynamic client
// registration.
//
// Registrations live in a Registry backend, either a JSON document addressed
// by an afs URL (FileRegistry) or a Redis hash (RedisRegistry). A Catalog
// serves lookups from memory, writes through to the backend and merges a
// statically configured list of trusted clients at startup.
package registry
