package pending

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned for unknown or already consumed ids.
	ErrNotFound = errors.New("pending: not found")
	// ErrExpired is returned when an entry is consumed after its deadline.
	ErrExpired = errors.New("pending: expired")
	// ErrDuplicate is returned when an id is already taken.
	ErrDuplicate = errors.New("pending: duplicate id")
)

// Pending is a typed interaction bound to a transport session.
type Pending[T any] struct {
	ID       string
	Session  string
	Kind     string
	ClientID string

	CreatedAt time.Time
	ExpiresAt time.Time

	Data T
}

// Expired reports whether the entry is past its deadline at now.
func (p *Pending[T]) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// Spec carries inputs to create a Pending. An empty ID is generated.
type Spec[T any] struct {
	ID       string
	Session  string
	Kind     string
	ClientID string
	TTL      time.Duration

	Data T
}
