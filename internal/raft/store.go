package raft

import (
	"context"

	"github.com/super-flat/nodewatcher/membership"
)

// Store is a membership.Store replicated through raft. Writes must come
// from the leader; the fsm applies them on every node.
type Store struct {
	node *Node
}

var _ membership.Store = (*Store)(nil)

// NewStore creates a Store on top of node
func NewStore(node *Node) *Store {
	return &Store{node: node}
}

// Apply implements membership.Store
func (s *Store) Apply(ctx context.Context, event membership.ChangeEvent) (membership.Transition, bool, error) {
	transition, ok := s.node.Members().Transit(event)
	if !ok {
		return transition, false, nil
	}
	if err := s.node.apply(ctx, []membership.Transition{transition}); err != nil {
		return membership.Transition{}, false, err
	}
	return transition, true, nil
}

// Reconcile implements membership.Store. The whole diff is committed as a
// single log entry.
func (s *Store) Reconcile(ctx context.Context, snapshot membership.Membership) ([]membership.Transition, error) {
	transitions := membership.Diff(s.node.Members(), snapshot)
	if len(transitions) == 0 {
		return nil, nil
	}
	if err := s.node.apply(ctx, transitions); err != nil {
		return nil, err
	}
	return transitions, nil
}

// Current implements membership.Store
func (s *Store) Current() membership.Membership {
	return s.node.Members()
}
