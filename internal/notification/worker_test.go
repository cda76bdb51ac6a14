package notification

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBSeq int

func setupTestDB(t *testing.T) (*gorm.DB, *snowflake.Node) {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:notification_test_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Receipt{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return db, node
}

type recordingMailer struct {
	sent   []snowflake.ID
	failOn snowflake.ID
}

func (m *recordingMailer) SendDonationReceipt(_ context.Context, donationID snowflake.ID) error {
	if donationID == m.failOn {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, donationID)
	return nil
}

func TestPublishIsIdempotentPerDonation(t *testing.T) {
	db, node := setupTestDB(t)
	outbox := NewOutbox(db, node)

	for i := 0; i < 2; i++ {
		if err := outbox.Publish(context.Background(), 42); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}

	var count int64
	if err := db.Model(&Receipt{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one receipt per donation, got %d", count)
	}
}

func TestRunOnceDispatchesAndRecordsOutcome(t *testing.T) {
	db, node := setupTestDB(t)
	outbox := NewOutbox(db, node)

	for _, donationID := range []snowflake.ID{1, 2, 3} {
		if err := outbox.Publish(context.Background(), donationID); err != nil {
			t.Fatalf("publish %d: %v", donationID, err)
		}
	}

	mailer := &recordingMailer{failOn: 2}
	worker := NewWorker(WorkerParams{DB: db, Log: zap.NewNop(), Mailer: mailer})

	if err := worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(mailer.sent) != 2 {
		t.Fatalf("expected 2 deliveries, got %d", len(mailer.sent))
	}

	var sent, failed int64
	if err := db.Model(&Receipt{}).Where("status = ?", StatusSent).Count(&sent).Error; err != nil {
		t.Fatalf("count sent: %v", err)
	}
	if err := db.Model(&Receipt{}).Where("status = ?", StatusFailed).Count(&failed).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if sent != 2 || failed != 1 {
		t.Fatalf("expected 2 sent and 1 failed, got %d and %d", sent, failed)
	}

	var receipt Receipt
	if err := db.First(&receipt, "donation_id = ?", 2).Error; err != nil {
		t.Fatalf("load failed receipt: %v", err)
	}
	if receipt.Attempts != 1 || receipt.LastError == nil {
		t.Fatalf("expected attempt and error recorded, got %+v", receipt)
	}

	// A second run only sees pending rows; nothing is re-delivered.
	mailer.sent = nil
	if err := worker.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(mailer.sent) != 0 {
		t.Fatalf("expected no redelivery, got %v", mailer.sent)
	}
}
