package logging

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = true
	logger, err := cfg.Build(zap.Fields(zap.String("service", "clinical-orchestrator")))
	if err != nil {
		return nil, err
	}
	return attachLogSink(logger), nil
}

func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewLogger),
		fx.Invoke(func(lc fx.Lifecycle, logger *zap.Logger) {
			lc.Append(fx.Hook{OnStop: func(ctx context.Context) error {
				_ = logger.Sync()
				return nil
			}})
		}),
	)
}
