package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/xim/effekt-backend/internal/audit/domain"
	auditrepo "github.com/xim/effekt-backend/internal/audit/repository"
	"github.com/xim/effekt-backend/internal/clock"
	"github.com/xim/effekt-backend/internal/config"
	distributiondomain "github.com/xim/effekt-backend/internal/distribution/domain"
	distributionrepo "github.com/xim/effekt-backend/internal/distribution/repository"
	distributionservice "github.com/xim/effekt-backend/internal/distribution/service"
	donationdomain "github.com/xim/effekt-backend/internal/donation/domain"
	donationservice "github.com/xim/effekt-backend/internal/donation/service"
	donordomain "github.com/xim/effekt-backend/internal/donor/domain"
	donorservice "github.com/xim/effekt-backend/internal/donor/service"
	"github.com/xim/effekt-backend/internal/notification"
	organizationdomain "github.com/xim/effekt-backend/internal/organization/domain"
	organizationservice "github.com/xim/effekt-backend/internal/organization/service"
	parsingdomain "github.com/xim/effekt-backend/internal/parsing/domain"
	parsingrepo "github.com/xim/effekt-backend/internal/parsing/repository"
	"github.com/xim/effekt-backend/internal/payment/paypal"
	"github.com/xim/effekt-backend/internal/payment/vipps"
	reconciliationservice "github.com/xim/effekt-backend/internal/reconciliation/service"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testDBSeq int

func setupTestEngine(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDBSeq++
	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", testDBSeq)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&organizationdomain.Organization{},
		&donordomain.Donor{},
		&distributiondomain.DataOwner{},
		&distributiondomain.Distribution{},
		&distributiondomain.Combining{},
		&donationdomain.Donation{},
		&notification.Receipt{},
		&parsingdomain.Rule{},
		&domain.ReportAudit{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	orgs := []organizationdomain.Organization{
		{ID: 1, FullName: "Against Malaria Foundation", Abbrev: "AMF", IsActive: true, Ordering: 1, StdPercentageShare: decimal.NewFromInt(60)},
		{ID: 2, FullName: "GiveDirectly", Abbrev: "GD", IsActive: true, Ordering: 2, StdPercentageShare: decimal.NewFromInt(40)},
	}
	for i := range orgs {
		if err := db.Create(&orgs[i]).Error; err != nil {
			t.Fatalf("seed org: %v", err)
		}
	}
	if err := db.Create(&distributiondomain.DataOwner{ID: 1, Name: "Effekt Foundation", IsDefault: true}).Error; err != nil {
		t.Fatalf("seed owner: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	log := zap.NewNop()
	clk := clock.SystemClock{}
	cfg := config.Config{Environment: "test", HTTPAddr: ":0"}

	donors := donorservice.NewService(donorservice.Params{DB: db, Log: log, GenID: node, Clock: clk})
	organizations := organizationservice.NewService(organizationservice.Params{DB: db, Log: log})
	distributions := distributionservice.NewService(distributionservice.Params{
		DB: db, Log: log, GenID: node, Repo: distributionrepo.Provide(),
	})
	donations := donationservice.NewService(donationservice.Params{
		DB: db, Log: log, GenID: node, Receipts: notification.NewOutbox(db, node),
	})
	reconciliation := reconciliationservice.NewService(reconciliationservice.Params{
		DB: db, Log: log, GenID: node,
		Donations: donations,
		Rules:     parsingrepo.Provide(db),
		Audits:    auditrepo.Provide(),
	})

	srv := NewServer(Params{
		Cfg:            cfg,
		DB:             db,
		Log:            log,
		Donors:         donors,
		Organizations:  organizations,
		Distributions:  distributions,
		Donations:      donations,
		Reconciliation: reconciliation,
		Vipps:          vipps.NewClient(cfg, log, clk),
		PayPal:         paypal.NewClient(cfg, log, clk),
		Audits:         auditrepo.Provide(),
	})
	return NewEngine(srv, cfg, log), db
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func registerBankDonation(t *testing.T, engine *gin.Engine, email string) string {
	t.Helper()
	rec := doJSON(t, engine, http.MethodPost, "/donations/register", gin.H{
		"donor":  gin.H{"email": email, "name": "Jakob Donor"},
		"method": 2,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp registerDonationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.KID) != 9 {
		t.Fatalf("expected 9 digit reference code, got %q", resp.KID)
	}
	return resp.KID
}

func TestRegisterDonationReusesKIDForSameSplit(t *testing.T) {
	engine, _ := setupTestEngine(t)

	first := registerBankDonation(t, engine, "donor@example.org")
	second := registerBankDonation(t, engine, "donor@example.org")
	if first != second {
		t.Fatalf("expected the same code for a repeated registration, got %q and %q", first, second)
	}

	rec := doJSON(t, engine, http.MethodGet, "/distributions/"+first, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get distribution: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Split []distributiondomain.SplitEntry `json:"split"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Split) != 2 {
		t.Fatalf("expected registration to default to the standard split, got %+v", resp.Split)
	}
}

func TestRegisterDonationRejectsUnknownMethod(t *testing.T) {
	engine, _ := setupTestEngine(t)

	rec := doJSON(t, engine, http.MethodPost, "/donations/register", gin.H{
		"donor":  gin.H{"email": "donor@example.org", "name": "Jakob Donor"},
		"method": 99,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetDistributionRejectsMalformedCode(t *testing.T) {
	engine, _ := setupTestEngine(t)

	rec := doJSON(t, engine, http.MethodGet, "/distributions/123", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed code, got %d", rec.Code)
	}
}

func TestIngestVippsReportEndToEnd(t *testing.T) {
	engine, db := setupTestEngine(t)

	code := registerBankDonation(t, engine, "donor@example.org")

	report := gin.H{
		"transactions": []gin.H{
			{
				"amount":         500,
				"date":           time.Date(2026, 5, 3, 12, 0, 0, 0, time.UTC),
				"transaction_id": "vipps-e2e-1",
				"kid":            code,
			},
			{
				"amount":         100,
				"date":           time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC),
				"transaction_id": "vipps-e2e-2",
				"message":        "ingen kode her",
			},
		},
	}

	for run := 0; run < 2; run++ {
		rec := doJSON(t, engine, http.MethodPost, "/reports/vipps", report)
		if rec.Code != http.StatusOK {
			t.Fatalf("run %d: status %d body %s", run, rec.Code, rec.Body.String())
		}
		var result struct {
			Valid   int `json:"valid"`
			Invalid int `json:"invalid"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if result.Valid != 1 || result.Invalid != 1 {
			t.Fatalf("run %d: expected {valid:1 invalid:1}, got %+v", run, result)
		}
	}

	var count int64
	if err := db.Model(&donationdomain.Donation{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected re-posted report to create no extra rows, got %d", count)
	}

	rec := doJSON(t, engine, http.MethodGet, "/reports/audits?provider=vipps", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("audits: status %d", rec.Code)
	}
	var audits struct {
		Audits []domain.ReportAudit `json:"audits"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &audits); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(audits.Audits) != 2 {
		t.Fatalf("expected one audit entry per run, got %d", len(audits.Audits))
	}
}

func TestIngestVippsReportRejectsEmptyBatch(t *testing.T) {
	engine, _ := setupTestEngine(t)

	rec := doJSON(t, engine, http.MethodPost, "/reports/vipps", gin.H{"transactions": []gin.H{}})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty batch, got %d", rec.Code)
	}
}
