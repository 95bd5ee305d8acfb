package server

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"github.com/dtroode/townsquare-auth/internal/model"
)

// GRPCServer wraps a gRPC server with address and lifecycle methods.
type GRPCServer struct {
	server *grpc.Server
	addr   string
	drain  func()
}

// NewGRPCServer creates a GRPCServer. drain, if set, runs before the server
// stops accepting calls.
func NewGRPCServer(server *grpc.Server, addr string, drain func()) *GRPCServer {
	return &GRPCServer{server: server, addr: addr, drain: drain}
}

// Start serves on the configured address using the provided security layer.
func (s *GRPCServer) Start(securityLayer model.SecurityLayer) error {
	listener, err := securityLayer.Listen(model.Network, s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.server.Serve(listener)
}

// Stop waits for in-flight calls to finish. When ctx ends first the
// remaining calls are cancelled.
func (s *GRPCServer) Stop(ctx context.Context) error {
	if s.drain != nil {
		s.drain()
	}

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		<-done
		return ctx.Err()
	}
}

// Address returns the configured listen address.
func (s *GRPCServer) Address() string {
	return s.addr
}

var _ model.Server = (*GRPCServer)(nil)
