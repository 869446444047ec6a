package pending

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL bounds how long a pending entry can wait for the next redirect.
const DefaultTTL = 5 * time.Minute

// IDGenerator returns a fresh opaque id.
type IDGenerator func() string

// Manager creates and consumes typed pendings.
type Manager[T any] struct {
	Store  Store[T]
	TTL    time.Duration
	NewID  IDGenerator
	Now    func() time.Time
	Prefix string
}

// ErrMisconfigured indicates a missing Store.
var ErrMisconfigured = errors.New("pending: misconfigured manager (missing Store)")

// NewManager creates a manager over an in-memory store.
func NewManager[T any](ttl time.Duration) *Manager[T] {
	return &Manager[T]{Store: NewMemoryStore[T](), TTL: ttl}
}

func (m *Manager[T]) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Create stores a new pending. An id collision with an existing entry is an
// error, so a freshly issued id can never alias an older one.
func (m *Manager[T]) Create(ctx context.Context, spec Spec[T]) (Pending[T], error) {
	if m.Store == nil {
		return Pending[T]{}, ErrMisconfigured
	}
	id := spec.ID
	if id == "" {
		id = m.newID()
	}
	ttl := spec.TTL
	if ttl <= 0 {
		ttl = m.TTL
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := m.now()
	p := Pending[T]{
		ID:        id,
		Session:   spec.Session,
		Kind:      spec.Kind,
		ClientID:  spec.ClientID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Data:      spec.Data,
	}
	if err := m.Store.Put(ctx, p); err != nil {
		return Pending[T]{}, err
	}
	return p, nil
}

func (m *Manager[T]) newID() string {
	if m.NewID != nil {
		return m.Prefix + m.NewID()
	}
	return m.Prefix + uuid.NewString()
}

// Consume removes and returns the entry for id. Replays fail with ErrNotFound
// and late arrivals with ErrExpired; either way the entry is gone afterwards.
func (m *Manager[T]) Consume(ctx context.Context, id string) (Pending[T], error) {
	if m.Store == nil {
		return Pending[T]{}, ErrMisconfigured
	}
	p, ok, err := m.Store.Take(ctx, id)
	if err != nil {
		return p, err
	}
	if !ok {
		return p, ErrNotFound
	}
	if p.Expired(m.now()) {
		return p, ErrExpired
	}
	return p, nil
}

// Cancel drops every pending started by session.
func (m *Manager[T]) Cancel(ctx context.Context, session string) (int, error) {
	if m.Store == nil {
		return 0, ErrMisconfigured
	}
	ids, err := m.Store.ClearSession(ctx, session)
	return len(ids), err
}

// Sweep purges expired entries.
func (m *Manager[T]) Sweep(ctx context.Context) (int, error) {
	if m.Store == nil {
		return 0, ErrMisconfigured
	}
	return m.Store.Sweep(ctx, m.now())
}
