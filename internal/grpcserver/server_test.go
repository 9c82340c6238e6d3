package grpcserver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func status(t *testing.T, s *Server, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := s.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_SERVICE_UNKNOWN
	}
	return resp.GetStatus()
}

func TestHealthLifecycle(t *testing.T) {
	s := New("127.0.0.1:0", zerolog.Nop())
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	served := make(chan error, 1)
	go func() { served <- s.Serve(lis) }()

	deadline := time.Now().Add(2 * time.Second)
	for status(t, s, Service) != healthpb.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("service never reported SERVING")
		}
		time.Sleep(5 * time.Millisecond)
	}

	s.Stop()
	if got := status(t, s, Service); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("after stop: %v, want NOT_SERVING", got)
	}
	if got := status(t, s, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("overall after stop: %v, want NOT_SERVING", got)
	}
	select {
	case err := <-served:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after Stop")
	}
}
