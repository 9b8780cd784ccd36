// internal/api/grpc/health.go
package grpc

import (
	"log/slog"
	"net"

	otelgrpc "go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DispatcherService is the health service name that tracks slot saturation.
const DispatcherService = "echo.Dispatcher"

// HealthServer exposes grpc.health.v1.Health for the dispatcher.
// The overall status stays SERVING; DispatcherService turns NOT_SERVING
// while every worker slot is occupied.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	logger *slog.Logger
}

// NewHealthServer creates the admin gRPC server with tracing enabled.
func NewHealthServer(logger *slog.Logger) *HealthServer {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(DispatcherService, healthpb.HealthCheckResponse_SERVING)

	s := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
	)
	healthpb.RegisterHealthServer(s, hs)

	return &HealthServer{
		server: s,
		health: hs,
		logger: logger.With("component", "grpc-health"),
	}
}

// SetSaturated flips DispatcherService between SERVING and NOT_SERVING.
func (h *HealthServer) SetSaturated(saturated bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if saturated {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.health.SetServingStatus(DispatcherService, status)
}

// Serve blocks serving gRPC on lis.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	return h.server.Serve(lis)
}

// Stop marks every service NOT_SERVING and stops the server.
func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.server.Stop()
}
