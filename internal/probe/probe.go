// Package probe exposes the grpc.health.v1 service for orchestrators and a
// client to query it.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ServiceName is the named service reported next to the overall status.
const ServiceName = "consult.v1.Consultations"

const (
	defaultInterval = 15 * time.Second
	pingTimeout     = 5 * time.Second
)

// Pinger is a dependency whose reachability decides the serving status.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves gRPC health checks.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]Pinger
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	serving bool
}

// New creates a health server. Nil pingers are skipped.
func New(checks map[string]Pinger, interval time.Duration, logger *slog.Logger) *Server {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	live := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			live[name] = p
		}
	}

	gs := grpc.NewServer(grpc.KeepaliveParams(keepalive.ServerParameters{
		Time:    2 * time.Minute,
		Timeout: 10 * time.Second,
	}))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		grpc:     gs,
		health:   hs,
		checks:   live,
		interval: interval,
		logger:   logger,
	}
}

// Refresh pings every dependency and updates the serving status.
func (s *Server) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ok := true
	for name, p := range s.checks {
		if err := p.Ping(ctx); err != nil {
			s.logger.Warn("health dependency unreachable", "dependency", name, "error", err)
			ok = false
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)

	s.mu.Lock()
	if s.serving != ok {
		s.logger.Info("health status changed", "serving", ok)
	}
	s.serving = ok
	s.mu.Unlock()
	return ok
}

// Serve answers health checks on lis until ctx is done, refreshing the status
// periodically.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	s.Refresh(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpc.Serve(lis)
	}()
	s.logger.Info("gRPC health server listening", "addr", lis.Addr().String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Refresh(ctx)
		case err := <-errCh:
			if errors.Is(err, grpc.ErrServerStopped) {
				return nil
			}
			return fmt.Errorf("gRPC health server: %w", err)
		case <-ctx.Done():
			s.health.Shutdown()
			s.grpc.GracefulStop()
			<-errCh
			s.logger.Info("gRPC health server stopped")
			return nil
		}
	}
}

// Check asks the health service at addr about service ("" for the server as
// a whole).
func Check(ctx context.Context, addr, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check %s: %w", addr, err)
	}
	return resp.GetStatus(), nil
}
