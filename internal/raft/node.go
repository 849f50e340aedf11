package raft

import (
	"context"
	"net"
	"sync"
	"time"

	transport "github.com/Jille/raft-grpc-transport"
	grpcMiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcPrometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	hraft "github.com/hashicorp/raft"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/super-flat/nodewatcher/internal/raft/fsm"
	"github.com/super-flat/nodewatcher/logging"
	"github.com/super-flat/nodewatcher/membership"
	"github.com/super-flat/nodewatcher/pkg/grpc/client"
	"github.com/super-flat/nodewatcher/pkg/grpc/interceptors"
	"github.com/super-flat/nodewatcher/pkg/grpc/metrics"
)

const (
	defaultApplyTimeout = 5 * time.Second
	raftLogCacheSize    = 512
)

// Config holds what a node needs to join its peers
type Config struct {
	// NodeID is this node's raft server id
	NodeID string
	// BindAddr is the host:port the grpc transport listens on
	BindAddr string
	// AdvertiseAddr is the host:port peers reach this node on. Defaults to BindAddr.
	AdvertiseAddr string
	// Peers is the static voter set. This node is added when missing.
	Peers []*Peer
	// ApplyTimeout bounds a single log apply when the caller context has no deadline
	ApplyTimeout time.Duration
}

// Node is a raft member replicating the watched membership. Raft leadership
// doubles as the notification lease.
type Node struct {
	ID      string
	Raft    *hraft.Raft
	fsm     *fsm.MembershipFsm
	address hraft.ServerAddress
	peers   []*Peer
	timeout time.Duration

	bindAddr         string
	trans            hraft.Transport
	transportManager *transport.Manager
	grpcServer       *grpc.Server
	serverMetrics    *grpcPrometheus.ServerMetrics

	logger      logging.Logger
	registerer  prometheus.Registerer
	leaderGauge prometheus.Gauge
	tweak       func(*hraft.Config)

	leadership *leadership
	stopCh     chan struct{}
	mtx        *sync.Mutex
	isStarted  bool
}

// NodeOption configures a Node
type NodeOption func(*Node)

// WithLogger sets the logger. Raft's own output goes through it as well.
func WithLogger(logger logging.Logger) NodeOption {
	return func(n *Node) {
		n.logger = logger
	}
}

// WithRegisterer registers the node's grpc and leadership metrics on reg
func WithRegisterer(reg prometheus.Registerer) NodeOption {
	return func(n *Node) {
		n.registerer = reg
	}
}

// WithTransport replaces the grpc transport, no listener is opened
func WithTransport(trans hraft.Transport) NodeOption {
	return func(n *Node) {
		n.trans = trans
	}
}

// WithRaftConfig lets the caller adjust the raft configuration before the node is built
func WithRaftConfig(tweak func(*hraft.Config)) NodeOption {
	return func(n *Node) {
		n.tweak = tweak
	}
}

// NewNode returns a raft node that is not yet part of a cluster
func NewNode(cfg Config, opts ...NodeOption) (*Node, error) {
	if cfg.NodeID == "" {
		return nil, errors.New("raft node id is required")
	}
	advertise := cfg.AdvertiseAddr
	if advertise == "" {
		advertise = cfg.BindAddr
	}
	timeout := cfg.ApplyTimeout
	if timeout <= 0 {
		timeout = defaultApplyTimeout
	}

	n := &Node{
		ID:         cfg.NodeID,
		fsm:        fsm.NewMembershipFsm(),
		peers:      cfg.Peers,
		timeout:    timeout,
		bindAddr:   cfg.BindAddr,
		logger:     logging.DefaultLogger,
		leadership: newLeadership(),
		stopCh:     make(chan struct{}),
		mtx:        &sync.Mutex{},
		leaderGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nodewatcher",
			Subsystem: "raft",
			Name:      "leader",
			Help:      "1 while this node holds raft leadership.",
		}),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.logger = n.logger.WithField("node", n.ID)

	if n.registerer != nil {
		if err := n.registerer.Register(n.leaderGauge); err != nil {
			return nil, errors.Wrap(err, "failed to register leadership gauge")
		}
	}

	if n.trans == nil {
		if err := n.setupGrpc(advertise); err != nil {
			return nil, err
		}
	}
	n.address = n.trans.LocalAddr()

	raftConf := hraft.DefaultConfig()
	raftConf.LocalID = hraft.ServerID(n.ID)
	raftConf.Logger = newLog(n.logger)
	if n.tweak != nil {
		n.tweak(raftConf)
	}

	// our nodes are ephemeral and the state is rebuilt from a fresh snapshot
	// on every leadership change, so in-memory stores are enough
	stableStore := hraft.NewInmemStore()
	logStore, err := hraft.NewLogCache(raftLogCacheSize, stableStore)
	if err != nil {
		return nil, err
	}
	snapshotStore := hraft.NewInmemSnapshotStore()

	n.Raft, err = hraft.NewRaft(raftConf, n.fsm, logStore, stableStore, snapshotStore, n.trans)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create raft")
	}
	return n, nil
}

func (n *Node) setupGrpc(advertise string) error {
	n.transportManager = transport.New(hraft.ServerAddress(advertise), client.PeerDialOptions())
	n.trans = n.transportManager.Transport()

	n.serverMetrics = metrics.NewServerMetrics()
	n.grpcServer = grpc.NewServer(
		grpc.StreamInterceptor(grpcMiddleware.ChainStreamServer(
			otelgrpc.StreamServerInterceptor(),
			n.serverMetrics.StreamServerInterceptor(),
			interceptors.NewRecoveryStreamInterceptor(n.logger),
		)),
		grpc.UnaryInterceptor(grpcMiddleware.ChainUnaryServer(
			otelgrpc.UnaryServerInterceptor(),
			n.serverMetrics.UnaryServerInterceptor(),
			interceptors.NewRecoveryUnaryInterceptor(n.logger),
		)),
	)
	n.transportManager.Register(n.grpcServer)

	if n.registerer != nil {
		if err := metrics.RegisterGrpcServer(n.registerer, n.serverMetrics, n.grpcServer); err != nil {
			return errors.Wrap(err, "failed to register grpc metrics")
		}
	}
	return nil
}

// Start bootstraps the static cluster and starts serving the transport
func (n *Node) Start(ctx context.Context) error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if n.isStarted {
		return errors.New("already started")
	}

	n.logger.Infof("starting raft node on %s", n.address)

	if n.grpcServer != nil {
		var lc net.ListenConfig
		listener, err := lc.Listen(ctx, "tcp", n.bindAddr)
		if err != nil {
			return errors.Wrapf(err, "failed to listen on %s", n.bindAddr)
		}
		go func() {
			if err := n.grpcServer.Serve(listener); err != nil {
				n.logger.Errorf("raft transport stopped serving: %v", err)
			}
		}()
	}

	// every peer bootstraps with the same configuration, raft reconciles them
	err := n.Raft.BootstrapCluster(n.configuration()).Error()
	if err != nil && !errors.Is(err, hraft.ErrCantBootstrap) {
		return errors.Wrap(err, "failed to bootstrap raft cluster")
	}

	go n.watchLeadership()
	n.isStarted = true
	return nil
}

// Stop shuts raft down and stops the transport
func (n *Node) Stop() error {
	n.mtx.Lock()
	defer n.mtx.Unlock()
	if !n.isStarted {
		return nil
	}
	close(n.stopCh)
	err := n.Raft.Shutdown().Error()
	if n.grpcServer != nil {
		n.grpcServer.GracefulStop()
	}
	n.leadership.set(false)
	n.leaderGauge.Set(0)
	n.isStarted = false
	n.logger.Info("raft stopped")
	return err
}

// IsLeader returns true if the current node is the cluster leader
func (n *Node) IsLeader() bool {
	return n.Raft.State() == hraft.Leader
}

// HasPeers reports whether the voter set has anyone but this node
func (n *Node) HasPeers() bool {
	cfg := n.Raft.GetConfiguration()
	if cfg.Error() != nil {
		return false
	}
	for _, server := range cfg.Configuration().Servers {
		if server.ID != hraft.ServerID(n.ID) {
			return true
		}
	}
	return false
}

// Members returns the replicated membership
func (n *Node) Members() membership.Membership {
	return n.fsm.Current()
}

func (n *Node) configuration() hraft.Configuration {
	servers := []hraft.Server{{Suffrage: hraft.Voter, ID: hraft.ServerID(n.ID), Address: n.address}}
	for _, peer := range n.peers {
		if peer.ID == n.ID {
			continue
		}
		servers = append(servers, peer.server())
	}
	return hraft.Configuration{Servers: servers}
}

func (n *Node) watchLeadership() {
	for {
		select {
		case <-n.stopCh:
			return
		case isLeader := <-n.Raft.LeaderCh():
			if isLeader {
				n.logger.Info("gained raft leadership")
				n.leaderGauge.Set(1)
			} else {
				n.logger.Info("lost raft leadership")
				n.leaderGauge.Set(0)
			}
			n.leadership.set(isLeader)
		}
	}
}

// apply commits one batch of transitions. The caller must be the leader.
func (n *Node) apply(ctx context.Context, transitions []membership.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := fsm.EncodeTransitions(transitions)
	if err != nil {
		return err
	}
	timeout := n.timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	future := n.Raft.Apply(payload, timeout)
	if err := future.Error(); err != nil {
		return errors.Wrap(err, "failed to apply membership change")
	}
	if err, ok := future.Response().(error); ok {
		return errors.Wrap(err, "membership change rejected")
	}
	return nil
}

// leadership broadcasts leadership changes to any number of waiters
type leadership struct {
	mtx     sync.Mutex
	leader  bool
	changed chan struct{}
}

func newLeadership() *leadership {
	return &leadership{changed: make(chan struct{})}
}

func (l *leadership) set(leader bool) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if l.leader == leader {
		return
	}
	l.leader = leader
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *leadership) get() (bool, <-chan struct{}) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return l.leader, l.changed
}
