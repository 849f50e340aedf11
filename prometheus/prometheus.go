package prometheus

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/super-flat/nodewatcher/logging"
)

const (
	metricsPath     = "/metrics"
	shutdownTimeout = 100 * time.Millisecond
)

// Server is a wrapper around the started http.Server exposing the metrics
// The server needs to be created and ready to go before any metrics can be properly exported.
type Server struct {
	port       int
	httpServer *http.Server
	listener   net.Listener
	logger     logging.Logger
}

// NewPromServer creates a Server exposing what gatherer collects
func NewPromServer(port int, gatherer prometheus.Gatherer, logger logging.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorLog:      promLogger{logger},
		ErrorHandling: promhttp.ContinueOnError,
	}))
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return &Server{
		port:       port,
		httpServer: server,
		logger:     logger,
	}
}

// Start binds the port and serves in the background. A bind failure is returned.
func (p *Server) Start() error {
	listener, err := net.Listen("tcp", p.httpServer.Addr)
	if err != nil {
		return err
	}
	p.listener = listener
	go func() {
		if err := p.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			p.logger.Errorf("failed to run Prometheus %s endpoint: %v", metricsPath, err)
		}
	}()
	p.logger.Infof("Prometheus %s endpoint started on %s", metricsPath, listener.Addr())
	return nil
}

// Addr returns the bound address, or the configured one before Start
func (p *Server) Addr() string {
	if p.listener != nil {
		return p.listener.Addr().String()
	}
	return p.httpServer.Addr
}

// Stop stops the prometheus server
func (p *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.httpServer.Shutdown(ctx); err != nil {
		p.logger.Errorf("failed to stop Prometheus %s endpoint: %v", metricsPath, err)
	}
}

// promLogger routes promhttp errors to the logger
type promLogger struct {
	logger logging.Logger
}

func (l promLogger) Println(v ...interface{}) {
	l.logger.Error(v...)
}
