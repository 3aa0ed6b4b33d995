package logger

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor logs unary gRPC calls. Methods listed in skip are
// passed through silently (health probes are noisy).
func UnaryServerInterceptor(l *Logger, skip ...string) grpc.UnaryServerInterceptor {
	skipMethods := make(map[string]bool, len(skip))
	for _, m := range skip {
		skipMethods[m] = true
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if skipMethods[info.FullMethod] {
			return handler(ctx, req)
		}

		start := time.Now()
		resp, err := handler(ctx, req)

		st, _ := status.FromError(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.Duration("latency", time.Since(start)),
			zap.String("code", st.Code().String()),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		switch st.Code() {
		case codes.OK:
			l.Info("gRPC call", fields...)
		case codes.Canceled, codes.DeadlineExceeded, codes.NotFound:
			l.Warn("gRPC call", fields...)
		default:
			l.Error("gRPC call", fields...)
		}
		return resp, err
	}
}
