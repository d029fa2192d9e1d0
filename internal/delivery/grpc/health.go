// Package grpc exposes the standard gRPC health service so orchestrators can
// probe the shop alongside the HTTP API.
package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health entry that tracks the order store.
const ServiceName = "vegshop.Orders"

// Pinger is satisfied by the repository store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer reports SERVING while the store answers pings.
type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	store    Pinger
	interval time.Duration
}

func NewHealthServer(store Pinger, interval time.Duration) *HealthServer {
	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &HealthServer{
		server:   srv,
		health:   hs,
		store:    store,
		interval: interval,
	}
}

// Check pings the store once and updates both the overall and the named
// service status.
func (s *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := s.store.Ping(ctx); err != nil {
		slog.Warn("Store ping failed", "err", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Watch re-checks the store until ctx is cancelled.
func (s *HealthServer) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Check(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Serve blocks until the listener fails or Stop is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	slog.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.server.Serve(lis)
}

// Stop marks everything NOT_SERVING and drains in-flight calls.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
