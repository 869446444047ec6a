package store

import (
	"context"
	"time"
)

// DefaultTTL applies when a caller passes a non-positive ttl.
const DefaultTTL = time.Hour

// TokenStore is a pluggable persistence layer for subject to token mappings.
// Lookups degrade to not-found on backend failure; only writes report errors.
type TokenStore interface {
	// SetUserToken upserts subject -> token and retires the subject's previous token.
	SetUserToken(ctx context.Context, subject, token string, ttl time.Duration) error
	GetUserToken(ctx context.Context, subject string) (string, bool)
	RemoveUserToken(ctx context.Context, subject string) error
	FindSubjectByToken(ctx context.Context, token string) (string, bool)
	// AllSubjects returns the unique subjects holding a live token.
	AllSubjects(ctx context.Context) []string
	// CleanupExpired removes expired records and returns how many were dropped.
	CleanupExpired(ctx context.Context) (int, error)
	Close() error
}

// Metadata describes a stored token.
type Metadata struct {
	Subject   string    `json:"user_subject"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (m *Metadata) expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

func effectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
