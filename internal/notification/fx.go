package notification

import (
	"context"

	"github.com/xim/effekt-backend/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(NewOutbox),
	fx.Provide(func(cfg config.Config) WorkerConfig {
		return WorkerConfig{
			BatchSize:    cfg.ReceiptDispatchBatchSize,
			PollInterval: cfg.ReceiptDispatchInterval,
		}
	}),
	fx.Provide(func(log *zap.Logger) Mailer {
		return NewLogMailer(log)
	}),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, worker *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go worker.RunForever(context.Background())
			return nil
		},
	})
}
