package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	rescuev1 "github.com/MrMoose/rescue/api/rescue/v1"
	"github.com/MrMoose/rescue/internal/runtime"
	logpkg "github.com/MrMoose/rescue/pkg/log"
)

// Server owns the gRPC server instance and runtime.
type Server struct {
	rt     *runtime.Runtime
	grpc   *grpc.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New constructs a gRPC server and registers services.
func New(rt *runtime.Runtime, opts ...grpc.ServerOption) *Server {
	s := &Server{rt: rt, grpc: grpc.NewServer(opts...), logger: rt.Logger().WithComponent("grpc")}
	hs := &healthSvc{Server: health.NewServer(), rt: rt}
	hs.SetServingStatus(rescuev1.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s.grpc, hs)
	rescuev1.RegisterQueueServiceServer(s.grpc, &queueSvc{rt: rt, logger: s.logger})
	return s
}

// ListenAndServe binds to addr and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("grpc listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.grpc.Serve(l) }()
	select {
	case <-ctx.Done():
		s.grpc.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Serve accepts connections on l until Close.
func (s *Server) Serve(l net.Listener) error {
	return s.grpc.Serve(l)
}

// Close stops the server and closes the listener.
func (s *Server) Close() {
	if s.grpc != nil {
		s.grpc.GracefulStop()
	}
	if s.lis != nil {
		_ = s.lis.Close()
	}
}
