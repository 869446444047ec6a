// Package redact shortens credential material before it reaches a log sink.
package redact

import "strings"

// PrefixLength is the number of token characters kept for correlation.
const PrefixLength = 8

// Token returns a fixed-length prefix of token suitable for logging.
func Token(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= PrefixLength {
		return "***"
	}
	return token[:PrefixLength] + "..."
}

// URL strips userinfo from a connection URL.
func URL(raw string) string {
	if raw == "" {
		return ""
	}
	scheme := ""
	rest := raw
	if idx := strings.Index(raw, "://"); idx != -1 {
		scheme = raw[:idx+3]
		rest = raw[idx+3:]
	}
	if at := strings.LastIndex(rest, "@"); at != -1 {
		rest = "***@" + rest[at+1:]
	}
	return scheme + rest
}
