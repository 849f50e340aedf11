package client

import (
	"time"

	grpcMiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcPrometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

// Builder collects the dial options used by peer connections
type Builder struct {
	options []grpc.DialOption
}

// NewBuilder creates an instance of Builder
func NewBuilder() *Builder {
	return &Builder{}
}

// WithOptions set dial options
func (b *Builder) WithOptions(opts ...grpc.DialOption) *Builder {
	b.options = append(b.options, opts...)
	return b
}

// WithInsecure set the connection as insecure
func (b *Builder) WithInsecure() *Builder {
	b.options = append(b.options, grpc.WithTransportCredentials(insecure.NewCredentials()))
	return b
}

// WithKeepAliveParams set the keep alive params.
// Make sure these parameters are set in coordination with the keepalive
// policy on the server, as incompatible settings can result in closing of connection.
func (b *Builder) WithKeepAliveParams(params keepalive.ClientParameters) *Builder {
	b.options = append(b.options, grpc.WithKeepaliveParams(params))
	return b
}

// WithUnaryInterceptors chains interceptors for unary calls
func (b *Builder) WithUnaryInterceptors(interceptors ...grpc.UnaryClientInterceptor) *Builder {
	b.options = append(b.options, grpc.WithUnaryInterceptor(grpcMiddleware.ChainUnaryClient(interceptors...)))
	return b
}

// WithStreamInterceptors chains interceptors for streaming calls
func (b *Builder) WithStreamInterceptors(interceptors ...grpc.StreamClientInterceptor) *Builder {
	b.options = append(b.options, grpc.WithStreamInterceptor(grpcMiddleware.ChainStreamClient(interceptors...)))
	return b
}

// WithDefaultInterceptors adds tracing and client metrics to unary and stream calls
func (b *Builder) WithDefaultInterceptors() *Builder {
	return b.
		WithUnaryInterceptors(
			otelgrpc.UnaryClientInterceptor(),
			grpcPrometheus.UnaryClientInterceptor,
		).
		WithStreamInterceptors(
			otelgrpc.StreamClientInterceptor(),
			grpcPrometheus.StreamClientInterceptor,
		)
}

// DialOptions returns the collected options
func (b *Builder) DialOptions() []grpc.DialOption {
	out := make([]grpc.DialOption, len(b.options))
	copy(out, b.options)
	return out
}

// PeerDialOptions are the options raft peers dial each other with
func PeerDialOptions() []grpc.DialOption {
	return NewBuilder().
		WithInsecure().
		WithDefaultInterceptors().
		WithKeepAliveParams(keepalive.ClientParameters{
			Time:                30 * time.Second,
			PermitWithoutStream: true,
		}).
		DialOptions()
}
