package api

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/cuemby/whisker/pkg/log"
	"github.com/cuemby/whisker/pkg/metrics"
)

// UnaryLoggingInterceptor logs every unary call and records its metrics
func UnaryLoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		timer := metrics.NewTimer()
		resp, err := handler(ctx, req)
		observeCall(info.FullMethod, timer, err)
		return resp, err
	}
}

// StreamLoggingInterceptor logs every streaming call once it ends
func StreamLoggingInterceptor() grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		timer := metrics.NewTimer()
		err := handler(srv, ss)
		observeCall(info.FullMethod, timer, err)
		return err
	}
}

func observeCall(fullMethod string, timer *metrics.Timer, err error) {
	method := methodName(fullMethod)
	code := status.Code(err)

	timer.ObserveDurationVec(metrics.GRPCRequestDuration, method)
	metrics.GRPCRequestsTotal.WithLabelValues(method, code.String()).Inc()

	logger := log.WithComponent("grpc")
	event := logger.Debug()
	if err != nil {
		event = logger.Warn().Err(err)
	}
	event.
		Str("method", method).
		Str("code", code.String()).
		Dur("duration", timer.Duration()).
		Msg("Handled gRPC call")
}

// methodName extracts the method from a full path
// ("/whisker.logs.v1.LogStream/GetStats" -> "GetStats")
func methodName(fullMethod string) string {
	parts := strings.Split(fullMethod, "/")
	if len(parts) < 2 {
		return fullMethod
	}
	return parts[len(parts)-1]
}
