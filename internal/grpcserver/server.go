// Package grpcserver serves the standard gRPC health service for orchestrator health checks.
package grpcserver

import (
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Service is the name reported to health checks besides the overall "".
const Service = "moneytrack.Backend"

type Server struct {
	addr   string
	lis    net.Listener
	health *health.Server
	log    zerolog.Logger
	Server *grpc.Server
}

func New(addr string, log zerolog.Logger) *Server {
	s := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	return &Server{addr: addr, health: hs, log: log, Server: s}
}

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// Serve marks the service SERVING and serves lis.
func (s *Server) Serve(lis net.Listener) error {
	s.lis = lis
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(Service, healthpb.HealthCheckResponse_SERVING)
	s.log.Info().Str("addr", lis.Addr().String()).Msg("grpc health listening")
	err := s.Server.Serve(lis)
	if err == grpc.ErrServerStopped {
		return nil
	}
	return err
}

// Stop reports NOT_SERVING to watchers and drains the server.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
