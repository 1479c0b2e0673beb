package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/clinicore/orchestrator/internal/config"
	"github.com/clinicore/orchestrator/internal/workflow"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	cfg    config.Config
	logger *zap.Logger
	engine *workflow.Engine
	srv    *http.Server
}

func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewServer),
		fx.Invoke(RegisterHooks),
	)
}

func NewServer(cfg config.Config, logger *zap.Logger, engine *workflow.Engine) *Server {
	s := &Server{cfg: cfg, logger: logger, engine: engine}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/workflows", s.handleWorkflows)
	mux.HandleFunc("/v1/workflows/", s.handleWorkflowRoutes)
	mux.HandleFunc("/v1/instances", s.handleInstances)
	mux.HandleFunc("/v1/instances/", s.handleInstanceRoutes)
	mux.HandleFunc("/v1/statistics", s.handleStatistics)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(mux, "clinical-orchestrator"),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func RegisterHooks(lc fx.Lifecycle, server *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			server.logger.Info("http server starting", zap.String("addr", server.srv.Addr))
			go func() {
				if err := server.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					server.logger.Error("http server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			server.logger.Info("http server stopping")
			return server.srv.Shutdown(shutdownCtx)
		},
	})
}
