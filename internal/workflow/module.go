package workflow

import (
	"context"
	"time"

	appconfig "github.com/clinicore/orchestrator/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewRegistry),
		fx.Provide(newNotifierFromConfig),
		fx.Provide(newEngineFromConfig),
		fx.Invoke(func(lc fx.Lifecycle, e *Engine) {
			lc.Append(fx.Hook{OnStop: func(ctx context.Context) error {
				e.Shutdown()
				return nil
			}})
		}),
	)
}

func newNotifierFromConfig(cfg appconfig.Config) *Notifier {
	return NewNotifier(
		cfg.Notify.AuditURL, cfg.Notify.AuditTimeout,
		cfg.Notify.EventBusURL, cfg.Notify.EventBusTimeout,
	)
}

func newEngineFromConfig(cfg appconfig.Config, logger *zap.Logger, registry *Registry, notifier *Notifier) *Engine {
	return NewEngine(Config{
		DefaultStepTimeout:    parseDuration(cfg.Engine.DefaultStepTimeout),
		BackoffBase:           parseDuration(cfg.Engine.BackoffBase),
		BackoffMax:            parseDuration(cfg.Engine.BackoffMax),
		RetentionMaxInstances: cfg.Engine.RetentionMaxInstances,
		RetentionTTL:          parseDuration(cfg.Engine.RetentionTTL),
	}, logger, registry, notifier)
}

func parseDuration(raw string) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0
	}
	return d
}
