package grpc

import (
	"context"
	"net"
	"strconv"

	"github.com/clinicore/orchestrator/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// NewServer exposes the grpc health service so the platform's probes and
// mesh can track the process. The engine's own API stays HTTP.
func NewServer(log *zap.Logger, cfg config.Config) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(otelgrpc.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(otelgrpc.StreamServerInterceptor()),
	}
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, health.NewServer())
	log.Info("grpc health enabled")
	return srv
}

func NewListener(cfg config.Config) (net.Listener, error) {
	addr := net.JoinHostPort(cfg.GRPC.Host, strconv.Itoa(cfg.GRPC.Port))
	return net.Listen("tcp", addr)
}

var Module = fx.Options(
	fx.Provide(NewServer, NewListener),
	fx.Invoke(lifecycleHook),
)

func lifecycleHook(lc fx.Lifecycle, log *zap.Logger, srv *grpc.Server, lis net.Listener) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("grpc server starting", zap.String("addr", lis.Addr().String()))
			go func() {
				if err := srv.Serve(lis); err != nil {
					log.Error("grpc server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("grpc server stopping")
			srv.GracefulStop()
			return nil
		},
	})
}
