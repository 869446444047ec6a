// Package collection provides small concurrency-safe generic containers.
package collection
