// Package healthsrv reports unit health over the standard gRPC health
// protocol so a supervisor on the host can watch the controller.
package healthsrv

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/BrandonDHaskell/Portunus/unit/internal/mode"
)

// Service names answered besides the overall "" service.
const (
	ServiceUnit   = "portunus.unit"
	ServiceOnline = "portunus.unit.online"
)

type Server struct {
	grpc   *grpc.Server
	health *health.Server
	obs    mode.Observer
	logger *zap.Logger
}

func New(obs mode.Observer, logger *zap.Logger) *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
		obs:    obs,
		logger: logger.Named("healthsrv"),
	}
	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.Refresh()
	return s
}

// Refresh publishes the current machine state. The unit serves in every
// mode except Shutdown; the online service serves while the authority
// answers.
func (s *Server) Refresh() {
	snap := s.obs.Snapshot()

	unit := healthpb.HealthCheckResponse_SERVING
	if snap.Mode == mode.Shutdown {
		unit = healthpb.HealthCheckResponse_NOT_SERVING
	}
	online := healthpb.HealthCheckResponse_NOT_SERVING
	if snap.Mode == mode.Cloud && snap.OnlineReady {
		online = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", unit)
	s.health.SetServingStatus(ServiceUnit, unit)
	s.health.SetServingStatus(ServiceOnline, online)
}

// Run refreshes every interval until ctx is cancelled.
func (s *Server) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh()
		}
	}
}

func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
