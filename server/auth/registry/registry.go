package registry

import "context"

// Registry is the durable backend for client registrations.
type Registry interface {
	LoadAll(ctx context.Context) ([]*Registration, error)
	Get(ctx context.Context, clientID string) (*Registration, bool, error)
	// Save upserts a registration.
	Save(ctx context.Context, registration *Registration) error
	Remove(ctx context.Context, clientID string) error
}
