// Package conv collects tiny helper functions that are not part of the public API
// but aid internal conversions.
//
// It coerces loosely typed decoded JSON claim values into plain Go types.
package conv
