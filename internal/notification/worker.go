package notification

import (
	"context"
	"errors"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkerConfig controls the receipt dispatch loop.
type WorkerConfig struct {
	BatchSize    int
	PollInterval time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	return c
}

type WorkerParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Mailer Mailer
	Config WorkerConfig `optional:"true"`
}

// Worker drains pending receipts and hands them to the mailer.
type Worker struct {
	db     *gorm.DB
	log    *zap.Logger
	mailer Mailer
	cfg    WorkerConfig
}

func NewWorker(p WorkerParams) *Worker {
	return &Worker{
		db:     p.DB,
		log:    p.Log.Named("notification.worker"),
		mailer: p.Mailer,
		cfg:    p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.RunOnce(ctx); err != nil {
			w.log.Warn("receipt dispatch run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce dispatches at most one batch of pending receipts.
func (w *Worker) RunOnce(ctx context.Context) error {
	if w.db == nil || w.mailer == nil {
		return errors.New("receipt_worker_unavailable")
	}

	var pending []Receipt
	err := w.db.WithContext(ctx).
		Where("status = ?", StatusPending).
		Order("created_at ASC").
		Limit(w.cfg.BatchSize).
		Find(&pending).Error
	if err != nil {
		return err
	}

	for _, receipt := range pending {
		if err := w.dispatch(ctx, receipt); err != nil {
			w.log.Warn("failed to dispatch receipt",
				zap.Int64("donation_id", int64(receipt.DonationID)),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, receipt Receipt) error {
	sendErr := w.mailer.SendDonationReceipt(ctx, receipt.DonationID)

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"attempts": gorm.Expr("attempts + 1"),
	}
	if sendErr != nil {
		msg := sendErr.Error()
		updates["status"] = StatusFailed
		updates["last_error"] = msg
	} else {
		updates["status"] = StatusSent
		updates["sent_at"] = now
		updates["last_error"] = nil
	}

	if err := w.db.WithContext(ctx).
		Model(&Receipt{}).
		Where("id = ?", receipt.ID).
		Updates(updates).Error; err != nil {
		return err
	}
	return sendErr
}
