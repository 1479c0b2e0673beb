package archive

import (
	"context"
	"time"

	"github.com/clinicore/orchestrator/internal/config"
	"github.com/clinicore/orchestrator/internal/workflow"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
	Config    config.Config
	Engine    *workflow.Engine
}

func Module() fx.Option {
	return fx.Invoke(Register)
}

// Register attaches the snapshot worker to the app lifecycle. With no DSN
// configured the worker stays off and the engine runs memory-only.
func Register(p Params) {
	if p.Config.Archive.DSN == "" {
		p.Logger.Info("instance archive disabled: no dsn configured")
		return
	}
	interval, err := time.ParseDuration(p.Config.Archive.Interval)
	if err != nil || interval <= 0 {
		interval = time.Minute
	}

	w := &worker{
		logger:   p.Logger,
		engine:   p.Engine,
		dsn:      p.Config.Archive.DSN,
		interval: interval,
		archived: map[string]bool{},
	}
	var cancel context.CancelFunc
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, runCancel := context.WithCancel(context.Background())
			cancel = runCancel
			go w.run(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			return nil
		},
	})
}

type worker struct {
	logger   *zap.Logger
	engine   *workflow.Engine
	dsn      string
	interval time.Duration
	archive  *PGArchive
	archived map[string]bool
}

func (w *worker) run(ctx context.Context) {
	for w.archive == nil {
		archive, err := NewPGArchive(w.dsn)
		if err != nil {
			w.logger.Warn("instance archive connect failed; retrying", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}
		w.archive = archive
	}
	defer w.archive.Close()
	w.logger.Info("instance archive started", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.snapshot(context.Background())
			return
		case <-ticker.C:
			w.snapshot(ctx)
		}
	}
}

// snapshot archives terminal instances not yet written, then the current
// statistics report. Failures log and leave the instance for the next tick.
func (w *worker) snapshot(ctx context.Context) {
	for _, inst := range w.engine.ListInstances() {
		if !inst.Terminal() || w.archived[inst.ID] {
			continue
		}
		if err := w.archive.SaveInstance(ctx, inst); err != nil {
			w.logger.Warn("instance archive write failed", zap.String("instance_id", inst.ID), zap.Error(err))
			continue
		}
		w.archived[inst.ID] = true
	}
	if err := w.archive.SaveStatistics(ctx, w.engine.Statistics()); err != nil {
		w.logger.Warn("statistics archive write failed", zap.Error(err))
	}
}
