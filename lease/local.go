package lease

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Local is an in-process Provider. Only one lease is outstanding at a time;
// Acquire waits for the current holder to release it or for Revoke.
type Local struct {
	mtx     sync.Mutex
	current *localLease
	free    chan struct{}
}

var _ Provider = (*Local)(nil)

// NewLocal creates a Local provider with the lease available
func NewLocal() *Local {
	free := make(chan struct{}, 1)
	free <- struct{}{}
	return &Local{free: free}
}

// Acquire implements Provider
func (l *Local) Acquire(ctx context.Context) (Lease, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-l.free:
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	held := &localLease{
		id:    uuid.NewString(),
		done:  make(chan struct{}),
		owner: l,
	}
	l.current = held
	return held, nil
}

// Revoke takes the lease away from its current holder, if any
func (l *Local) Revoke() {
	l.mtx.Lock()
	held := l.current
	l.mtx.Unlock()
	if held != nil {
		held.Release()
	}
}

// Holder returns the ID of the current lease, or "" when nobody holds it
func (l *Local) Holder() string {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.current == nil {
		return ""
	}
	return l.current.id
}

type localLease struct {
	id    string
	done  chan struct{}
	once  sync.Once
	owner *Local
}

func (l *localLease) ID() string { return l.id }

func (l *localLease) Done() <-chan struct{} { return l.done }

func (l *localLease) Release() {
	l.once.Do(func() {
		close(l.done)
		l.owner.mtx.Lock()
		if l.owner.current == l {
			l.owner.current = nil
		}
		l.owner.mtx.Unlock()
		l.owner.free <- struct{}{}
	})
}
