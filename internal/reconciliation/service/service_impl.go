package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/xim/effekt-backend/internal/audit/domain"
	"github.com/xim/effekt-backend/internal/distribution/kid"
	donationdomain "github.com/xim/effekt-backend/internal/donation/domain"
	"github.com/xim/effekt-backend/internal/observability/metrics"
	parsingdomain "github.com/xim/effekt-backend/internal/parsing/domain"
	paymentdomain "github.com/xim/effekt-backend/internal/payment/domain"
	"github.com/xim/effekt-backend/internal/reconciliation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Donations donationdomain.Service
	Rules     parsingdomain.Repository
	Audits    auditdomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	donations donationdomain.Service
	rules     parsingdomain.Repository
	audits    auditdomain.Repository
	metrics   *metrics.ReconciliationMetrics
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("reconciliation.service"),
		genID:     p.GenID,
		donations: p.Donations,
		rules:     p.Rules,
		audits:    p.Audits,
		metrics:   metrics.Reconciliation(),
	}
}

func (s *Service) ProcessReport(ctx context.Context, methodID int, report domain.Report) (domain.Result, error) {
	provider := providerName(methodID)
	start := time.Now()

	rules, err := s.rules.GetVippsParsingRules(ctx, report.MinDate, report.MaxDate)
	if err != nil {
		return domain.Result{}, err
	}

	result := domain.Result{InvalidTransactions: []domain.InvalidTransaction{}}
	for _, tx := range report.Transactions {
		code := extractCode(tx)
		if code == "" {
			code = resolveByRule(rules, tx)
		}
		if code == "" {
			s.reject(&result, provider, domain.ReasonNoCodeFound, tx)
			continue
		}
		if err := s.commit(ctx, methodID, code, tx); err != nil {
			s.log.Warn("transaction commit rejected",
				zap.String("provider", provider),
				zap.String("transaction_id", tx.TransactionID),
				zap.String("kid", code),
				zap.Error(err),
			)
			s.reject(&result, provider, err.Error(), tx)
			continue
		}
		result.Valid++
		s.metrics.IncTransactionResolved(provider, "valid")
	}

	s.writeAudit(ctx, provider, report, result)

	s.metrics.IncReportProcessed(provider)
	s.metrics.ObserveReportDuration(provider, time.Since(start))
	s.log.Info("report reconciled",
		zap.String("provider", provider),
		zap.Int("valid", result.Valid),
		zap.Int("invalid", result.Invalid),
	)
	return result, nil
}

// commit records and settles one matched transaction. The ledger absorbs
// redelivery through the external ref, and a second confirmation of the same
// row is not an error for the batch.
func (s *Service) commit(ctx context.Context, methodID int, code string, tx domain.Transaction) error {
	id, err := s.donations.RecordPending(ctx, donationdomain.RecordPendingRequest{
		KID:             code,
		PaymentMethodID: methodID,
		Sum:             tx.Amount,
		Timestamp:       tx.Date,
		ExternalRef:     tx.TransactionID,
	})
	if err != nil {
		return err
	}
	err = s.donations.Confirm(ctx, id, tx.Date)
	if errors.Is(err, donationdomain.ErrAlreadyConfirmed) {
		s.log.Debug("transaction already settled",
			zap.String("transaction_id", tx.TransactionID),
			zap.Int64("donation_id", int64(id)),
		)
		return nil
	}
	return err
}

func (s *Service) reject(result *domain.Result, provider, reason string, tx domain.Transaction) {
	result.Invalid++
	result.InvalidTransactions = append(result.InvalidTransactions, domain.InvalidTransaction{
		Reason:      reason,
		Transaction: tx,
	})
	s.metrics.IncTransactionResolved(provider, "invalid")
}

// writeAudit records the batch outcome for later review. The audit trail is
// best effort and never fails the batch.
func (s *Service) writeAudit(ctx context.Context, provider string, report domain.Report, result domain.Result) {
	entry := auditdomain.ReportAudit{
		ID:           s.genID.Generate(),
		Provider:     provider,
		ValidCount:   result.Valid,
		InvalidCount: result.Invalid,
		Metadata: datatypes.JSONMap{
			"transactions": len(report.Transactions),
			"min_date":     report.MinDate,
			"max_date":     report.MaxDate,
		},
	}
	if report.Filename != "" {
		entry.Filename = &report.Filename
	}
	if report.Actor != "" {
		entry.Actor = &report.Actor
	}
	if err := s.audits.Insert(ctx, s.db, &entry); err != nil {
		s.log.Error("report audit insert failed",
			zap.String("provider", provider),
			zap.Error(err),
		)
	}
}

// extractCode returns the transaction's reference code when one is directly
// present: a pre-extracted KID, or a valid digit run inside the free-text
// message.
func extractCode(tx domain.Transaction) string {
	if tx.KID != "" && kid.Validate(tx.KID) {
		return tx.KID
	}
	return scanMessage(tx.Message)
}

// scanMessage finds the first substring of the message that validates as a
// reference code. Digits may be embedded in arbitrary text the donor typed.
func scanMessage(message string) string {
	run := 0
	for i := 0; i < len(message); i++ {
		if message[i] < '0' || message[i] > '9' {
			run = 0
			continue
		}
		run++
		if run >= kid.Length {
			candidate := message[i-kid.Length+1 : i+1]
			if kid.Validate(candidate) {
				return candidate
			}
		}
	}
	return ""
}

// resolveByRule applies curated fallback rules in stored order. The first
// matching rule wins, so administrators order specific rules before wildcard
// ones.
func resolveByRule(rules []parsingdomain.Rule, tx domain.Transaction) string {
	for _, rule := range rules {
		if rule.Matches(tx.Location, tx.Message) {
			return rule.ResolveKID
		}
	}
	return ""
}

func providerName(methodID int) string {
	switch methodID {
	case paymentdomain.MethodBank:
		return "bank"
	case paymentdomain.MethodPayPal:
		return "paypal"
	case paymentdomain.MethodVipps:
		return "vipps"
	default:
		return "unknown"
	}
}
