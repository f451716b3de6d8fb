package health

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// GRPCChecker asks a gRPC server's standard health service about one service
type GRPCChecker struct {
	// Address is the gRPC target (e.g., "127.0.0.1:9000")
	Address string

	// Service is the service name to check; empty checks the whole server
	Service string

	// DialOptions default to a plaintext connection
	DialOptions []grpc.DialOption
}

// NewGRPCChecker creates a checker for service at address
func NewGRPCChecker(address, service string) *GRPCChecker {
	return &GRPCChecker{
		Address:     address,
		Service:     service,
		DialOptions: []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())},
	}
}

// Check performs the gRPC health check
func (g *GRPCChecker) Check(ctx context.Context) Result {
	start := time.Now()
	result := func(healthy bool, format string, args ...any) Result {
		return Result{
			Healthy:   healthy,
			Message:   fmt.Sprintf(format, args...),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	conn, err := grpc.NewClient(g.Address, g.DialOptions...)
	if err != nil {
		return result(false, "failed to connect: %v", err)
	}
	defer func() { _ = conn.Close() }()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: g.Service})
	if err != nil {
		return result(false, "health check failed: %v", err)
	}

	serving := resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
	return result(serving, "gRPC %s", resp.GetStatus())
}

// Type returns the health check type
func (g *GRPCChecker) Type() CheckType {
	return CheckTypeGRPC
}
