package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dtroode/townsquare-auth/internal/logger"
)

// Logging is a unary interceptor that logs gRPC requests and results.
type Logging struct {
	logger *logger.Logger
}

// NewLogging creates a new Logging middleware.
func NewLogging(logger *logger.Logger) *Logging {
	return &Logging{logger: logger}
}

// HandleGRPC logs method name, duration and status for each unary request.
// Request bodies carry passwords and tokens and are never logged.
func (l *Logging) HandleGRPC(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()

	l.logger.Debug("gRPC request started",
		"method", info.FullMethod)

	resp, err := handler(ctx, req)

	code := status.Code(err)
	attrs := []any{
		"method", info.FullMethod,
		"duration_ms", time.Since(start).Milliseconds(),
		"status", code.String(),
	}

	switch code {
	case codes.OK:
		l.logger.Info("gRPC request completed", attrs...)
	case codes.Internal, codes.Unknown, codes.DataLoss:
		l.logger.Error("gRPC request failed", append(attrs, "error", err.Error())...)
	default:
		l.logger.Info("gRPC request rejected", attrs...)
	}

	return resp, err
}
