// Package health serves the standard gRPC health protocol. The alert
// stream service is reported SERVING only while its connection is open.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/fencewatch/fencewatch/internal/collector"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// StreamService is the service name checked by orchestrators
const StreamService = "fencewatch.AlertStream"

// Server hosts the gRPC health service
type Server struct {
	listener   net.Listener
	grpcServer *grpc.Server
	health     *health.Server
	logger     zerolog.Logger
}

// New listens on port; 0 picks a free port
func New(port int, logger zerolog.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(StreamService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &Server{
		listener:   listener,
		grpcServer: grpcServer,
		health:     healthServer,
		logger:     logger.With().Str("component", "health").Logger(),
	}, nil
}

// Addr returns the listener address for the server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// StreamStateChanged is the transport's state hook
func (s *Server) StreamStateChanged(state collector.State) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if state == collector.StateOpen {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(StreamService, status)
}

// Serve runs until ctx is cancelled
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info().
		Str("address", s.Addr()).
		Msg("Starting gRPC health server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.grpcServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.health.Shutdown()
		s.grpcServer.GracefulStop()
		err := <-serveErr
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	case err := <-serveErr:
		if err == nil || errors.Is(err, grpc.ErrServerStopped) {
			return nil
		}
		return fmt.Errorf("serve gRPC: %w", err)
	}
}
