package server

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/lk2023060901/serp-gateway/internal/conf"
	"github.com/lk2023060901/serp-gateway/internal/pkg/logger"
)

// GRPCServer gRPC 服务器，仅暴露标准健康检查服务
type GRPCServer struct {
	addr       string
	logger     *logger.Logger
	grpcServer *grpc.Server
	health     *health.Server
}

// NewGRPCServer 创建 gRPC 服务器，健康状态由 hs 的持有者更新
func NewGRPCServer(config *conf.Config, log *logger.Logger, hs *health.Server) *GRPCServer {
	log = logger.OrGlobal(log).Named("grpc")

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logger.RecoveryInterceptor(log),
			logger.UnaryServerInterceptorWithConfig(log, logger.GRPCInterceptorOptions{
				// 探针高频调用
				QuietMethods: []string{healthpb.Health_Check_FullMethodName},
			}),
		),
		grpc.ChainStreamInterceptor(
			logger.StreamRecoveryInterceptor(log),
			logger.StreamServerInterceptor(log),
		),
	)

	healthpb.RegisterHealthServer(grpcServer, hs)

	// 启用反射（用于 grpcurl 等工具）
	reflection.Register(grpcServer)

	return &GRPCServer{
		addr:       config.Server.GRPCAddr(),
		logger:     log,
		grpcServer: grpcServer,
		health:     hs,
	}
}

// Start 启动 gRPC 服务器
func (s *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

// Serve 在已有 listener 上提供服务
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.logger.Info("starting gRPC server", zap.String("addr", lis.Addr().String()))

	if err := s.grpcServer.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Stop 停止 gRPC 服务器
func (s *GRPCServer) Stop() {
	s.logger.Info("stopping gRPC server")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
