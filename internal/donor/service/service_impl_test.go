package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/xim/effekt-backend/internal/clock"
	distributiondomain "github.com/xim/effekt-backend/internal/distribution/domain"
	"github.com/xim/effekt-backend/internal/donor/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBSeq int

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	testDBSeq++
	dsn := fmt.Sprintf("file:donor_test_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Donor{}, &distributiondomain.Combining{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	svc := &Service{
		db:    db,
		log:   zap.NewNop(),
		genID: node,
		clock: &clock.Fixed{Instant: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	return svc, db
}

func TestEnsureReturnsExistingDonorByEmail(t *testing.T) {
	svc, db := newTestService(t)

	first, err := svc.Ensure(context.Background(), domain.RegisterDonorRequest{
		Email: "Jakob@Example.org", FullName: "Jakob Donor",
	})
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := svc.Ensure(context.Background(), domain.RegisterDonorRequest{
		Email: "jakob@example.org", FullName: "J. Donor",
	})
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first != second {
		t.Fatalf("expected email match regardless of case, got %d and %d", first, second)
	}

	var count int64
	if err := db.Model(&domain.Donor{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one donor row, got %d", count)
	}
}

func TestEnsureRegistersAnonymousDonorsSeparately(t *testing.T) {
	svc, _ := newTestService(t)

	first, err := svc.Ensure(context.Background(), domain.RegisterDonorRequest{FullName: "Anonym"})
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}
	second, err := svc.Ensure(context.Background(), domain.RegisterDonorRequest{FullName: "Anonym"})
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first == second {
		t.Fatal("expected donors without email to get distinct records")
	}
}

func TestAddRequiresName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Add(context.Background(), domain.RegisterDonorRequest{Email: "a@b.c"})
	if !errors.Is(err, domain.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestSetTaxIDNeverOverwrites(t *testing.T) {
	svc, _ := newTestService(t)

	id, err := svc.Add(context.Background(), domain.RegisterDonorRequest{
		Email: "donor@example.org", FullName: "Jakob Donor",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := svc.SetTaxID(context.Background(), id, "01017012345"); err != nil {
		t.Fatalf("first set: %v", err)
	}
	if err := svc.SetTaxID(context.Background(), id, "99999999999"); err != nil {
		t.Fatalf("second set: %v", err)
	}

	donor, err := svc.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if donor.TaxID == nil || *donor.TaxID != "01017012345" {
		t.Fatalf("expected first tax id kept, got %v", donor.TaxID)
	}
}

func TestGetByKIDResolvesOwner(t *testing.T) {
	svc, db := newTestService(t)

	id, err := svc.Add(context.Background(), domain.RegisterDonorRequest{
		Email: "donor@example.org", FullName: "Jakob Donor",
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	err = db.Create(&distributiondomain.Combining{
		ID: 1, DonorID: id, DistributionID: 1, KID: "123456782", MetaOwnerID: 1,
	}).Error
	if err != nil {
		t.Fatalf("seed combining: %v", err)
	}

	donor, err := svc.GetByKID(context.Background(), "123456782")
	if err != nil {
		t.Fatalf("get by kid: %v", err)
	}
	if donor.ID != id {
		t.Fatalf("expected donor %d, got %d", id, donor.ID)
	}

	if _, err := svc.GetByKID(context.Background(), "999999999"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}
}
