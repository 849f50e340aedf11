package interceptors

import (
	grpcRecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/super-flat/nodewatcher/logging"
)

func recoveryHandler(logger logging.Logger) grpcRecovery.RecoveryHandlerFunc {
	return func(p interface{}) error {
		logger.Errorf("recovered from panic in grpc handler: %v", p)
		return status.Errorf(codes.Internal, "panic triggered: %v", p)
	}
}

// NewRecoveryUnaryInterceptor recovers from an unexpected panic.
// Recovery handlers should typically be last in the chain so that other middleware
// can operate on the recovered state instead of being directly affected by any panic
func NewRecoveryUnaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return grpcRecovery.UnaryServerInterceptor(grpcRecovery.WithRecoveryHandler(recoveryHandler(logger)))
}

// NewRecoveryStreamInterceptor recovers from an unexpected panic
func NewRecoveryStreamInterceptor(logger logging.Logger) grpc.StreamServerInterceptor {
	return grpcRecovery.StreamServerInterceptor(grpcRecovery.WithRecoveryHandler(recoveryHandler(logger)))
}
