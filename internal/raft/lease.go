package raft

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/super-flat/nodewatcher/lease"
)

// leadership changes are also polled in case a LeaderCh signal was coalesced
const leaderPollInterval = 250 * time.Millisecond

// LeaseProvider hands out raft leadership as the notification lease
type LeaseProvider struct {
	node *Node
}

var _ lease.Provider = (*LeaseProvider)(nil)

// NewLeaseProvider creates a LeaseProvider on top of a started node
func NewLeaseProvider(node *Node) *LeaseProvider {
	return &LeaseProvider{node: node}
}

// Acquire waits until this node leads the cluster and its fsm has caught up
// with every entry committed by previous leaders
func (p *LeaseProvider) Acquire(ctx context.Context) (lease.Lease, error) {
	ticker := time.NewTicker(leaderPollInterval)
	defer ticker.Stop()
	for {
		if p.node.IsLeader() {
			if err := p.node.Raft.Barrier(p.node.timeout).Error(); err != nil {
				p.node.logger.Warnf("leader barrier failed: %v", err)
			} else {
				return p.newLease(), nil
			}
		}
		_, changed := p.node.leadership.get()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.node.stopCh:
			return nil, errors.New("raft node stopped")
		case <-changed:
		case <-ticker.C:
		}
	}
}

func (p *LeaseProvider) newLease() *raftLease {
	l := &raftLease{
		id:       uuid.NewString(),
		node:     p.node,
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
	go l.watch()
	return l
}

type raftLease struct {
	id       string
	node     *Node
	done     chan struct{}
	released chan struct{}
	once     sync.Once
}

func (l *raftLease) ID() string { return l.id }

func (l *raftLease) Done() <-chan struct{} { return l.done }

// Release hands leadership to another voter when there is one, so the
// cluster does not wait for this node to come back
func (l *raftLease) Release() {
	l.once.Do(func() {
		close(l.released)
		if l.node.IsLeader() && l.node.HasPeers() {
			if err := l.node.Raft.LeadershipTransfer().Error(); err != nil {
				l.node.logger.Warnf("leadership transfer failed: %v", err)
			}
		}
	})
}

func (l *raftLease) watch() {
	defer close(l.done)
	ticker := time.NewTicker(leaderPollInterval)
	defer ticker.Stop()
	for {
		_, changed := l.node.leadership.get()
		if !l.node.IsLeader() {
			return
		}
		select {
		case <-l.released:
			return
		case <-l.node.stopCh:
			return
		case <-changed:
		case <-ticker.C:
		}
	}
}
