// Package store keeps the subject to token mapping used to recover a user's
// credential outside of the request that produced it.
//
// Two backends ship with the package: a bounded in-process map (MemoryStore),
// sufficient for a single gateway instance, and a Redis backed store
// (RedisStore) whose records expire independently and survive restarts. Use
// New to select one from configuration with a connectivity probe that falls
// back to memory.
package store
