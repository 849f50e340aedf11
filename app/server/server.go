package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/super-flat/nodewatcher/internal/raft"
	"github.com/super-flat/nodewatcher/kube"
	"github.com/super-flat/nodewatcher/lease"
	"github.com/super-flat/nodewatcher/logging"
	"github.com/super-flat/nodewatcher/membership"
	"github.com/super-flat/nodewatcher/notify"
	httpmetrics "github.com/super-flat/nodewatcher/pkg/http/metrics"
	"github.com/super-flat/nodewatcher/pkg/traces"
	promserver "github.com/super-flat/nodewatcher/prometheus"
	"github.com/super-flat/nodewatcher/reconciler"
	"github.com/super-flat/nodewatcher/requestid"
)

const (
	serviceName      = "nodewatcher"
	metricsNamespace = "nodewatcher"
)

// Server wires the reconciler to its collaborators for one deployment mode
type Server struct {
	cfg        *Config
	logger     logging.Logger
	registry   *prometheus.Registry
	promServer *promserver.Server
	traces     *traces.Provider
	node       *raft.Node
	reconciler *reconciler.Reconciler
}

// New builds a Server from a validated config
func New(cfg *Config, logger logging.Logger) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	source, err := s.newSource()
	if err != nil {
		return nil, err
	}
	notifier, err := s.newNotifier()
	if err != nil {
		return nil, err
	}

	var (
		store  membership.Store
		leases lease.Provider
	)
	switch cfg.Mode {
	case ModeHA:
		peers, err := cfg.Peers()
		if err != nil {
			return nil, &ConfigurationError{Field: "RAFT_PEERS", Err: err}
		}
		s.node, err = raft.NewNode(raft.Config{
			NodeID:        cfg.RaftNodeID,
			BindAddr:      cfg.RaftBindAddr,
			AdvertiseAddr: cfg.RaftAdvertiseAddr,
			Peers:         peers,
		}, raft.WithLogger(logger), raft.WithRegisterer(s.registry))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create raft node")
		}
		store = raft.NewStore(s.node)
		leases = raft.NewLeaseProvider(s.node)
	default:
		store = membership.NewLocalStore()
		leases = lease.NewLocal()
	}

	// the global tracer delegates to the provider once it is registered
	s.traces = traces.NewProvider(cfg.TraceURL, serviceName)
	s.reconciler = reconciler.New(source, store, leases, notifier,
		reconciler.WithLogger(logger),
		reconciler.WithBackoff(cfg.BackoffMin, cfg.BackoffMax),
		reconciler.WithResyncLimit(cfg.ResyncPerMinute),
		reconciler.WithShutdownTimeout(cfg.ShutdownTimeout),
		reconciler.WithRegisterer(s.registry),
		reconciler.WithTracer(s.traces.Tracer("github.com/super-flat/nodewatcher/reconciler")),
		reconciler.OnStateChange(func(state reconciler.State) {
			logger.Debugf("reconciler entered %s", state)
		}),
	)

	if cfg.MetricsEnabled {
		s.promServer = promserver.NewPromServer(cfg.MetricsPort, s.registry, logger)
	}
	return s, nil
}

func (s *Server) newSource() (*kube.Client, error) {
	creds, err := s.cfg.Credentials()
	if err != nil {
		return nil, &ConfigurationError{Field: "SOURCE_USERNAME/SOURCE_PASSWORD/SOURCE_TOKEN_FILE", Err: err}
	}
	instrumentation, err := httpmetrics.NewInstrumentation(metricsNamespace, "source", s.registry)
	if err != nil {
		return nil, err
	}
	return kube.NewClient(kube.Config{
		Hostname:     s.cfg.SourceHostname,
		Credentials:  creds,
		CAFile:       s.cfg.SourceCAFile,
		Insecure:     s.cfg.SourceInsecure,
		FetchTimeout: s.cfg.SourceFetchTimeout,
	}, kube.WithLogger(s.logger), kube.WithTransportWrapper(func(rt http.RoundTripper) http.RoundTripper {
		return requestid.Transport(instrumentation.RoundTripper(rt))
	}))
}

func (s *Server) newNotifier() (*notify.Notifier, error) {
	instrumentation, err := httpmetrics.NewInstrumentation(metricsNamespace, "sink", s.registry)
	if err != nil {
		return nil, err
	}
	webhook := notify.NewWebhook(s.cfg.SinkWebhookURL, instrumentation.Client(&http.Client{
		Transport: requestid.Transport(http.DefaultTransport),
	}))
	return notify.NewNotifier(webhook,
		notify.WithTimeout(s.cfg.SinkTimeout),
		notify.WithLogger(s.logger),
		notify.WithRegisterer(s.registry),
	), nil
}

// Run starts the supporting services and runs the reconciler until ctx is
// done. The shutdown notice has been attempted when Run returns.
func (s *Server) Run(ctx context.Context) (err error) {
	if s.cfg.TraceURL != "" {
		if err := s.traces.Register(ctx); err != nil {
			return errors.Wrap(err, "failed to register the trace provider")
		}
		defer func() {
			err = multierr.Append(err, s.traces.Deregister(context.Background()))
		}()
	}
	if s.promServer != nil {
		if err := s.promServer.Start(); err != nil {
			return errors.Wrap(err, "failed to start the metrics endpoint")
		}
		defer s.promServer.Stop()
	}
	if s.node != nil {
		if err := s.node.Start(ctx); err != nil {
			return errors.Wrap(err, "failed to start raft node")
		}
		defer func() {
			err = multierr.Append(err, s.node.Stop())
		}()
	}

	s.logger.Infof("node watcher running in %s mode", s.cfg.Mode)
	return s.reconciler.Run(ctx)
}

// Run builds a Server from cfg and runs it until the process is signalled
func Run(cfg *Config) error {
	logging.SetGlobalSettings(cfg.LogLevel)
	logger := logging.DefaultLogger

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := New(cfg, logger)
	if err != nil {
		return err
	}
	err = srv.Run(ctx)
	logger.Info("node watcher stopped")
	return err
}
