package metrics

import (
	grpcPrometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

// NewServerMetrics returns grpc server metrics with handling time histograms enabled
func NewServerMetrics() *grpcPrometheus.ServerMetrics {
	m := grpcPrometheus.NewServerMetrics()
	m.EnableHandlingTimeHistogram()
	return m
}

// RegisterGrpcServer registers m on reg and pre-initializes all counters to 0
// for the services of grpcServer. This allows for easier monitoring in
// Prometheus (no missing metrics), and should be called *after* all services
// have been registered with the server.
func RegisterGrpcServer(reg prometheus.Registerer, m *grpcPrometheus.ServerMetrics, grpcServer *grpc.Server) error {
	if err := reg.Register(m); err != nil {
		return err
	}
	m.InitializeMetrics(grpcServer)
	return nil
}
