package notification

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Receipt is one queued donation receipt. One row per donation: redelivered
// provider reports conflict on donation_id and insert nothing.
type Receipt struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	DonationID snowflake.ID `gorm:"not null;uniqueIndex"`
	Status     string       `gorm:"type:text;not null;default:'pending'"`
	Attempts   int          `gorm:"not null;default:0"`
	LastError  *string      `gorm:"type:text"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	SentAt     *time.Time
}

// TableName sets the database table name.
func (Receipt) TableName() string { return "donation_receipts" }

// Outbox queues donation receipts for asynchronous delivery.
type Outbox struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutbox(db *gorm.DB, genID *snowflake.Node) *Outbox {
	return &Outbox{db: db, genID: genID}
}

// Publish queues a receipt using the default database connection.
func (o *Outbox) Publish(ctx context.Context, donationID snowflake.ID) error {
	return o.publish(ctx, o.db, donationID)
}

// PublishTx queues a receipt inside an existing transaction.
func (o *Outbox) PublishTx(ctx context.Context, tx *gorm.DB, donationID snowflake.ID) error {
	if tx == nil {
		return errors.New("missing_transaction")
	}
	return o.publish(ctx, tx, donationID)
}

func (o *Outbox) publish(ctx context.Context, db *gorm.DB, donationID snowflake.ID) error {
	if o == nil || db == nil || o.genID == nil {
		return errors.New("outbox_unavailable")
	}
	if donationID == 0 {
		return errors.New("invalid_donation_id")
	}

	return db.WithContext(ctx).Exec(
		`INSERT INTO donation_receipts (id, donation_id, status, attempts, created_at)
		 VALUES (?, ?, 'pending', 0, ?)
		 ON CONFLICT (donation_id) DO NOTHING`,
		o.genID.Generate(),
		donationID,
		time.Now().UTC(),
	).Error
}
