package server

import (
	"context"
	"net"
	"sort"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/PaulBabatuyi/files-manager/internal/service"
)

const defaultHealthInterval = 10 * time.Second

// HealthServer serves grpc.health.v1.Health. Each named check is reported as
// its own service; the overall status ("") is SERVING only when all pass.
type HealthServer struct {
	grpc     *grpc.Server
	health   *health.Server
	checks   map[string]service.Pinger
	interval time.Duration
	logger   *zap.Logger
}

func NewHealthServer(logger *zap.Logger, interval time.Duration, checks map[string]service.Pinger, opts ...grpc.ServerOption) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	srv := grpc.NewServer(opts...)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	return &HealthServer{
		grpc:     srv,
		health:   hs,
		checks:   checks,
		interval: interval,
		logger:   logger.Named("health"),
	}
}

// GRPCServer exposes the underlying server, e.g. for metric initialisation.
func (h *HealthServer) GRPCServer() *grpc.Server {
	return h.grpc
}

// Refresh pings every check once and publishes the result.
func (h *HealthServer) Refresh(ctx context.Context) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	overall := healthpb.HealthCheckResponse_SERVING
	for _, name := range names {
		st := healthpb.HealthCheckResponse_SERVING
		if err := h.checks[name].Ping(ctx); err != nil {
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			h.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
		}
		h.health.SetServingStatus(name, st)
	}
	h.health.SetServingStatus("", overall)
}

// Serve refreshes the status periodically and serves on lis until ctx is
// cancelled, then stops gracefully.
func (h *HealthServer) Serve(ctx context.Context, lis net.Listener) error {
	h.Refresh(ctx)

	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.Refresh(ctx)
			}
		}
	}()

	go func() {
		<-ctx.Done()
		h.health.Shutdown()
		h.grpc.GracefulStop()
	}()

	h.logger.Info("health server listening", zap.String("addr", lis.Addr().String()))
	if err := h.grpc.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return err
	}
	return nil
}
