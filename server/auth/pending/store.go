package pending

import (
	"context"
	"time"
)

// Store is the backing registry of pendings.
type Store[T any] interface {
	// Put inserts p, failing with ErrDuplicate when the id is taken.
	Put(ctx context.Context, p Pending[T]) error
	Get(ctx context.Context, id string) (Pending[T], bool, error)
	// Take removes and returns the entry; only one caller can take a given id.
	Take(ctx context.Context, id string) (Pending[T], bool, error)

	ListSession(ctx context.Context, session string) ([]Pending[T], error)
	ClearSession(ctx context.Context, session string) ([]string, error)
	// Sweep removes entries expired at now.
	Sweep(ctx context.Context, now time.Time) (int, error)
}
