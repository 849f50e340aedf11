// Package lease defines the exclusive leadership lease the reconciler holds
// while it emits notifications.
package lease

import "context"

// Lease is held by at most one instance at a time
type Lease interface {
	// ID identifies the holder of this lease
	ID() string
	// Done is closed when the lease is lost or released
	Done() <-chan struct{}
	// Release gives the lease up. Calling it more than once is a no-op.
	Release()
}

// Provider hands out leases
type Provider interface {
	// Acquire blocks until a lease is held or ctx is done
	Acquire(ctx context.Context) (Lease, error)
}
