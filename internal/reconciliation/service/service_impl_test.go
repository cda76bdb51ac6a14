package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/xim/effekt-backend/internal/audit/domain"
	auditrepo "github.com/xim/effekt-backend/internal/audit/repository"
	distributiondomain "github.com/xim/effekt-backend/internal/distribution/domain"
	donationdomain "github.com/xim/effekt-backend/internal/donation/domain"
	donationservice "github.com/xim/effekt-backend/internal/donation/service"
	donordomain "github.com/xim/effekt-backend/internal/donor/domain"
	"github.com/xim/effekt-backend/internal/notification"
	"github.com/xim/effekt-backend/internal/observability/metrics"
	parsingdomain "github.com/xim/effekt-backend/internal/parsing/domain"
	parsingrepo "github.com/xim/effekt-backend/internal/parsing/repository"
	paymentdomain "github.com/xim/effekt-backend/internal/payment/domain"
	"github.com/xim/effekt-backend/internal/reconciliation/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Registered reference codes with correct check digits.
const (
	kidDirect   = "123456782"
	kidInText   = "876543216"
	kidRuleMain = "100000009"
	kidOrphan   = "555555556" // well formed but never registered
)

var testDBSeq int

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:reconciliation_test_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&donordomain.Donor{},
		&distributiondomain.Distribution{},
		&distributiondomain.Combining{},
		&donationdomain.Donation{},
		&notification.Receipt{},
		&parsingdomain.Rule{},
		&auditdomain.ReportAudit{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	donor := donordomain.Donor{ID: 100, FullName: "Jakob Donor", DateRegistered: time.Now()}
	if err := db.Create(&donor).Error; err != nil {
		t.Fatalf("seed donor: %v", err)
	}
	for i, code := range []string{kidDirect, kidInText, kidRuleMain} {
		err := db.Create(&distributiondomain.Combining{
			ID: snowflake.ID(i + 1), DonorID: 100, DistributionID: snowflake.ID(i + 1),
			KID: code, MetaOwnerID: 1,
		}).Error
		if err != nil {
			t.Fatalf("seed combining %s: %v", code, err)
		}
	}
	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	donations := donationservice.NewService(donationservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Receipts: notification.NewOutbox(db, node),
	})
	return &Service{
		db:        db,
		log:       zap.NewNop(),
		genID:     node,
		donations: donations,
		rules:     parsingrepo.Provide(db),
		audits:    auditrepo.Provide(),
		metrics:   metrics.Reconciliation(),
	}
}

func testReport(transactions ...domain.Transaction) domain.Report {
	return domain.Report{
		Transactions: transactions,
		MinDate:      time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
		MaxDate:      time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
		Filename:     "vipps-may.csv",
		Actor:        "ops@example.org",
	}
}

func TestProcessReportSplitsValidAndInvalid(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	report := testReport(
		domain.Transaction{
			Amount:        decimal.NewFromInt(500),
			Date:          time.Date(2026, 5, 3, 12, 0, 0, 0, time.UTC),
			TransactionID: "vipps-1",
			KID:           kidDirect,
		},
		domain.Transaction{
			Amount:        decimal.NewFromInt(250),
			Date:          time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
			TransactionID: "vipps-2",
			Message:       "Gave til " + kidInText + ", takk!",
		},
		domain.Transaction{
			Amount:        decimal.NewFromInt(100),
			Date:          time.Date(2026, 5, 5, 18, 0, 0, 0, time.UTC),
			TransactionID: "vipps-3",
			Message:       "anonym gave",
			Location:      "Kiosk uten regel",
		},
	)

	result, err := svc.ProcessReport(context.Background(), paymentdomain.MethodVipps, report)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Valid != 2 || result.Invalid != 1 {
		t.Fatalf("expected {valid:2 invalid:1}, got {valid:%d invalid:%d}", result.Valid, result.Invalid)
	}
	if len(result.InvalidTransactions) != 1 {
		t.Fatalf("expected 1 invalid transaction, got %d", len(result.InvalidTransactions))
	}
	rejected := result.InvalidTransactions[0]
	if rejected.Reason != domain.ReasonNoCodeFound {
		t.Fatalf("expected reason %q, got %q", domain.ReasonNoCodeFound, rejected.Reason)
	}
	if rejected.Transaction.TransactionID != "vipps-3" {
		t.Fatalf("expected vipps-3 rejected, got %q", rejected.Transaction.TransactionID)
	}

	var confirmed int64
	err = db.Model(&donationdomain.Donation{}).
		Where("timestamp_confirmed IS NOT NULL").
		Count(&confirmed).Error
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if confirmed != 2 {
		t.Fatalf("expected 2 confirmed donations, got %d", confirmed)
	}
}

func TestProcessReportRerunIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	report := testReport(
		domain.Transaction{
			Amount:        decimal.NewFromInt(500),
			Date:          time.Date(2026, 5, 3, 12, 0, 0, 0, time.UTC),
			TransactionID: "vipps-1",
			KID:           kidDirect,
		},
		domain.Transaction{
			Amount:        decimal.NewFromInt(250),
			Date:          time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
			TransactionID: "vipps-2",
			Message:       "ref " + kidInText,
		},
	)

	first, err := svc.ProcessReport(context.Background(), paymentdomain.MethodVipps, report)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := svc.ProcessReport(context.Background(), paymentdomain.MethodVipps, report)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.Valid != 2 || second.Valid != 2 || second.Invalid != 0 {
		t.Fatalf("expected both runs to see 2 valid, got first=%+v second=%+v", first, second)
	}

	var count int64
	if err := db.Model(&donationdomain.Donation{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected redelivered batch to create no new rows, got %d", count)
	}
}

func TestProcessReportFirstMatchingRuleWins(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	coffee := "kaffe"
	rules := []parsingdomain.Rule{
		{
			ID: 1, SalesLocation: "Vipps Kassa", Message: &coffee, ResolveKID: kidDirect,
			PeriodFrom: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			PeriodTo:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			ID: 2, SalesLocation: "Vipps Kassa", Message: nil, ResolveKID: kidRuleMain,
			PeriodFrom: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
			PeriodTo:   time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC),
		},
	}
	for i := range rules {
		if err := db.Create(&rules[i]).Error; err != nil {
			t.Fatalf("seed rule: %v", err)
		}
	}

	report := testReport(
		domain.Transaction{
			Amount:        decimal.NewFromInt(75),
			Date:          time.Date(2026, 5, 10, 8, 0, 0, 0, time.UTC),
			TransactionID: "vipps-10",
			Message:       coffee,
			Location:      "Vipps Kassa",
		},
		domain.Transaction{
			Amount:        decimal.NewFromInt(30),
			Date:          time.Date(2026, 5, 10, 8, 5, 0, 0, time.UTC),
			TransactionID: "vipps-11",
			Message:       "noe annet",
			Location:      "Vipps Kassa",
		},
	)

	result, err := svc.ProcessReport(context.Background(), paymentdomain.MethodVipps, report)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Valid != 2 {
		t.Fatalf("expected both transactions resolved by rules, got %+v", result)
	}

	var kids []string
	err = db.Model(&donationdomain.Donation{}).
		Order("payment_external_ref ASC").
		Pluck("kid", &kids).Error
	if err != nil {
		t.Fatalf("pluck: %v", err)
	}
	if len(kids) != 2 || kids[0] != kidDirect || kids[1] != kidRuleMain {
		t.Fatalf("expected specific rule before wildcard, got %v", kids)
	}
}

func TestProcessReportLedgerRejectionIsCaptured(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	report := testReport(domain.Transaction{
		Amount:        decimal.NewFromInt(120),
		Date:          time.Date(2026, 5, 6, 14, 0, 0, 0, time.UTC),
		TransactionID: "vipps-20",
		KID:           kidOrphan,
	})

	result, err := svc.ProcessReport(context.Background(), paymentdomain.MethodVipps, report)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if result.Valid != 0 || result.Invalid != 1 {
		t.Fatalf("expected unregistered code to be rejected, got %+v", result)
	}
	if result.InvalidTransactions[0].Reason != donationdomain.ErrKIDNotFound.Error() {
		t.Fatalf("expected ledger reason, got %q", result.InvalidTransactions[0].Reason)
	}
}

func TestProcessReportWritesAuditTrail(t *testing.T) {
	db := setupTestDB(t)
	svc := newTestService(t, db)

	report := testReport(
		domain.Transaction{
			Amount:        decimal.NewFromInt(500),
			Date:          time.Date(2026, 5, 3, 12, 0, 0, 0, time.UTC),
			TransactionID: "vipps-1",
			KID:           kidDirect,
		},
		domain.Transaction{
			Amount:        decimal.NewFromInt(100),
			Date:          time.Date(2026, 5, 5, 18, 0, 0, 0, time.UTC),
			TransactionID: "vipps-2",
			Message:       "ingen kode",
		},
	)

	if _, err := svc.ProcessReport(context.Background(), paymentdomain.MethodVipps, report); err != nil {
		t.Fatalf("process: %v", err)
	}

	var entry auditdomain.ReportAudit
	if err := db.First(&entry, "provider = ?", "vipps").Error; err != nil {
		t.Fatalf("expected audit entry: %v", err)
	}
	if entry.ValidCount != 1 || entry.InvalidCount != 1 {
		t.Fatalf("expected counts {1 1}, got {%d %d}", entry.ValidCount, entry.InvalidCount)
	}
	if entry.Filename == nil || *entry.Filename != "vipps-may.csv" {
		t.Fatalf("expected filename recorded, got %v", entry.Filename)
	}
}

func TestExtractCodePrefersDirectKID(t *testing.T) {
	tx := domain.Transaction{KID: kidDirect, Message: "ref " + kidInText}
	if got := extractCode(tx); got != kidDirect {
		t.Fatalf("expected pre-extracted code, got %q", got)
	}

	// A malformed pre-extracted code falls back to the message scan.
	tx = domain.Transaction{KID: "123", Message: "ref " + kidInText}
	if got := extractCode(tx); got != kidInText {
		t.Fatalf("expected message scan fallback, got %q", got)
	}

	// Digit runs with a bad check digit never resolve.
	tx = domain.Transaction{Message: "ref 123456789"}
	if got := extractCode(tx); got != "" {
		t.Fatalf("expected no code, got %q", got)
	}
}
