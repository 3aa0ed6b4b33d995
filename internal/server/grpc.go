package server

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/lk2023060901/agent-gateway/internal/conf"
	"github.com/lk2023060901/agent-gateway/internal/pkg/logger"
)

// ServiceName is the health service name reported for the gateway.
const ServiceName = "agent.gateway"

// GRPCServer serves grpc.health.v1 for orchestrators. A zero port disables it.
type GRPCServer struct {
	config     *conf.Config
	logger     *logger.Logger
	grpcServer *grpc.Server
	health     *health.Server
}

func NewGRPCServer(config *conf.Config, log *logger.Logger) *GRPCServer {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.UnaryServerInterceptor(log, healthpb.Health_Check_FullMethodName),
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)

	// grpcurl
	reflection.Register(grpcServer)

	return &GRPCServer{
		config:     config,
		logger:     log,
		grpcServer: grpcServer,
		health:     hs,
	}
}

// Enabled reports whether a gRPC port is configured.
func (s *GRPCServer) Enabled() bool {
	return s.config.Server.GRPCPort > 0
}

// Start listens on the configured port. It returns immediately when disabled.
func (s *GRPCServer) Start() error {
	if !s.Enabled() {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.GRPCPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve marks the gateway serving and blocks on lis.
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	s.logger.Info("starting gRPC server", zap.String("addr", lis.Addr().String()))

	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop reports NOT_SERVING, then drains in-flight calls.
func (s *GRPCServer) Stop() {
	s.logger.Info("stopping gRPC server")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
