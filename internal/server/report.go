package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/xim/effekt-backend/internal/audit/domain"
	paymentdomain "github.com/xim/effekt-backend/internal/payment/domain"
	reconciliationdomain "github.com/xim/effekt-backend/internal/reconciliation/domain"
)

// IngestVippsReport reconciles a normalized provider report against the
// donation ledger. Re-posting the same report is safe; matched transactions
// are absorbed by the ledger's idempotency.
func (s *Server) IngestVippsReport(c *gin.Context) {
	if !s.reportLimiter.Allow(c.ClientIP()) {
		AbortWithError(c, ErrRateLimited)
		return
	}

	var report reconciliationdomain.Report
	if err := c.ShouldBindJSON(&report); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(report.Transactions) == 0 {
		AbortWithError(c, newValidationError("transactions", "required", "report has no transactions"))
		return
	}
	fillReportWindow(&report)

	result, err := s.reconciliationSvc.ProcessReport(c.Request.Context(), paymentdomain.MethodVipps, report)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) ListReportAudits(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := s.auditRepo.List(c.Request.Context(), s.db, auditdomain.ListFilter{
		Provider: strings.TrimSpace(c.Query("provider")),
		Limit:    limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"audits": entries})
}

// fillReportWindow derives the rule lookup window from the transactions when
// the caller did not provide one.
func fillReportWindow(report *reconciliationdomain.Report) {
	if !report.MinDate.IsZero() && !report.MaxDate.IsZero() {
		return
	}
	min, max := time.Time{}, time.Time{}
	for _, tx := range report.Transactions {
		if min.IsZero() || tx.Date.Before(min) {
			min = tx.Date
		}
		if max.IsZero() || tx.Date.After(max) {
			max = tx.Date
		}
	}
	if report.MinDate.IsZero() {
		report.MinDate = min
	}
	if report.MaxDate.IsZero() {
		report.MaxDate = max
	}
}
