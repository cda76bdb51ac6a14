package notification

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

// Mailer delivers donation receipts. Delivery is best effort: failures are
// recorded on the receipt row for review, never surfaced to donation
// processing.
type Mailer interface {
	SendDonationReceipt(ctx context.Context, donationID snowflake.ID) error
}

// LogMailer records receipts in the log instead of sending mail. It is the
// default when no outbound mail transport is configured.
type LogMailer struct {
	log *zap.Logger
}

func NewLogMailer(log *zap.Logger) *LogMailer {
	return &LogMailer{log: log.Named("notification.mailer")}
}

func (m *LogMailer) SendDonationReceipt(ctx context.Context, donationID snowflake.ID) error {
	m.log.Info("donation receipt", zap.Int64("donation_id", int64(donationID)))
	return nil
}
