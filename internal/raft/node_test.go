package raft

import (
	"context"
	"net/netip"
	"testing"
	"time"

	hraft "github.com/hashicorp/raft"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"github.com/super-flat/nodewatcher/logging"
	"github.com/super-flat/nodewatcher/membership"
)

func fastRaft(conf *hraft.Config) {
	conf.HeartbeatTimeout = 50 * time.Millisecond
	conf.ElectionTimeout = 50 * time.Millisecond
	conf.LeaderLeaseTimeout = 50 * time.Millisecond
	conf.CommitTimeout = 5 * time.Millisecond
}

type NodeSuite struct {
	suite.Suite
	node *Node
	reg  *prometheus.Registry
}

func TestNode(t *testing.T) {
	suite.Run(t, new(NodeSuite))
}

func (s *NodeSuite) SetupTest() {
	_, trans := hraft.NewInmemTransport("")
	s.reg = prometheus.NewRegistry()
	node, err := NewNode(
		Config{NodeID: "watcher-a", ApplyTimeout: time.Second},
		WithTransport(trans),
		WithLogger(logging.Discard()),
		WithRegisterer(s.reg),
		WithRaftConfig(fastRaft),
	)
	s.Require().NoError(err)
	s.Require().NoError(node.Start(context.Background()))
	s.node = node
}

func (s *NodeSuite) TearDownTest() {
	s.Require().NoError(s.node.Stop())
}

func (s *NodeSuite) acquire() *raftLease {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	held, err := NewLeaseProvider(s.node).Acquire(ctx)
	s.Require().NoError(err)
	return held.(*raftLease)
}

func (s *NodeSuite) TestSingleNodeLeads() {
	held := s.acquire()
	s.NotEmpty(held.ID())
	s.True(s.node.IsLeader())
	s.False(s.node.HasPeers())
	s.Eventually(func() bool {
		return testutil.ToFloat64(s.node.leaderGauge) == 1
	}, time.Second, 10*time.Millisecond)
}

func (s *NodeSuite) TestReleaseClosesDone() {
	held := s.acquire()
	held.Release()
	held.Release()
	select {
	case <-held.Done():
	case <-time.After(time.Second):
		s.Fail("lease not closed after release")
	}

	// without peers leadership stays here and can be acquired again
	again := s.acquire()
	s.NotEqual(held.ID(), again.ID())
	again.Release()
}

func (s *NodeSuite) TestStopEndsLease() {
	held := s.acquire()
	s.Require().NoError(s.node.Stop())
	select {
	case <-held.Done():
	case <-time.After(time.Second):
		s.Fail("lease not closed after stop")
	}
	// stopping twice is fine
	s.Require().NoError(s.node.Stop())
}

func (s *NodeSuite) TestStore() {
	held := s.acquire()
	defer held.Release()
	ctx := context.Background()
	store := NewStore(s.node)

	snapshot := membership.NewMembership(
		membership.Member{Identity: "b", Address: netip.MustParseAddr("10.0.0.2")},
		membership.Member{Identity: "a", Address: netip.MustParseAddr("10.0.0.1")},
	)
	transitions, err := store.Reconcile(ctx, snapshot)
	s.Require().NoError(err)
	s.Require().Len(transitions, 2)
	s.Equal(membership.Identity("a"), transitions[0].Identity)
	s.Equal(snapshot, store.Current())

	transitions, err = store.Reconcile(ctx, snapshot)
	s.Require().NoError(err)
	s.Empty(transitions)

	transition, ok, err := store.Apply(ctx, membership.ChangeEvent{
		Type:   membership.Deleted,
		Member: membership.Member{Identity: "a"},
	})
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(netip.MustParseAddr("10.0.0.1"), transition.Address)
	s.Len(store.Current(), 1)

	_, ok, err = store.Apply(ctx, membership.ChangeEvent{
		Type:   membership.Modified,
		Member: membership.Member{Identity: "b"},
	})
	s.Require().NoError(err)
	s.False(ok)
}

func (s *NodeSuite) TestApplyHonoursCancelledContext() {
	held := s.acquire()
	defer held.Release()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := NewStore(s.node).Apply(ctx, membership.ChangeEvent{
		Type:   membership.Added,
		Member: membership.Member{Identity: "c"},
	})
	s.ErrorIs(err, context.Canceled)
}

func (s *NodeSuite) TestAcquireHonoursContext() {
	follower, err := NewNode(
		Config{NodeID: "watcher-b", Peers: []*Peer{{ID: "watcher-z", Host: "10.255.0.1", RaftPort: 1}}},
		WithTransport(newIsolatedTransport()),
		WithLogger(logging.Discard()),
		WithRaftConfig(fastRaft),
	)
	s.Require().NoError(err)
	s.Require().NoError(follower.Start(context.Background()))
	defer func() { _ = follower.Stop() }()

	// two voters and one of them unreachable, so no leader can be elected
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = NewLeaseProvider(follower).Acquire(ctx)
	s.ErrorIs(err, context.DeadlineExceeded)
}

func newIsolatedTransport() hraft.Transport {
	_, trans := hraft.NewInmemTransport("")
	return trans
}
