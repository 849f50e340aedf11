package membership

import (
	"context"
	"sync"
)

// Store is the authoritative membership held by the active instance
type Store interface {
	// Apply folds a change event into the store. Added overwrites, Deleted
	// removes, Modified is ignored and reports no transition.
	Apply(ctx context.Context, event ChangeEvent) (Transition, bool, error)
	// Reconcile makes the store's key set equal to snapshot's and returns
	// one transition per key that was added or removed.
	Reconcile(ctx context.Context, snapshot Membership) ([]Transition, error)
	// Current returns a point-in-time copy of the store
	Current() Membership
}

// LocalStore is a process local Store
type LocalStore struct {
	mtx     *sync.RWMutex
	members Membership
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates an empty LocalStore
func NewLocalStore() *LocalStore {
	return &LocalStore{
		mtx:     &sync.RWMutex{},
		members: make(Membership),
	}
}

// Apply implements Store
func (s *LocalStore) Apply(_ context.Context, event ChangeEvent) (Transition, bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	transition, ok := s.members.Transit(event)
	if ok {
		s.members.Fold(transition)
	}
	return transition, ok, nil
}

// Reconcile implements Store. The write lock is held for the whole diff so
// the comparison runs against a single consistent view.
func (s *LocalStore) Reconcile(_ context.Context, snapshot Membership) ([]Transition, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	transitions := Diff(s.members, snapshot)
	for _, t := range transitions {
		s.members.Fold(t)
	}
	return transitions, nil
}

// Current implements Store
func (s *LocalStore) Current() Membership {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.members.Clone()
}
