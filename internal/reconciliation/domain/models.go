package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is one normalized provider report row. The report-normalization
// collaborator may have extracted a KID already; otherwise the engine scans
// the free-text message itself.
type Transaction struct {
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	TransactionID string          `json:"transaction_id"`
	Message       string          `json:"message"`
	Location      string          `json:"location"`
	KID           string          `json:"kid,omitempty"`
}

// Report is the normalized shape every provider report reduces to before
// reconciliation. Byte-level report parsing happens outside the core.
type Report struct {
	Transactions []Transaction `json:"transactions"`
	MinDate      time.Time     `json:"min_date"`
	MaxDate      time.Time     `json:"max_date"`
	Filename     string        `json:"filename,omitempty"`
	Actor        string        `json:"actor,omitempty"`
}

// ReasonNoCodeFound marks transactions where neither direct extraction nor a
// parsing rule produced a reference code.
const ReasonNoCodeFound = "NoCodeFound"

// InvalidTransaction carries a rejected transaction and why, for manual
// review.
type InvalidTransaction struct {
	Reason      string      `json:"reason"`
	Transaction Transaction `json:"transaction"`
}

// Result summarizes one reconciled batch. Commits are independent and
// durable per transaction; the batch never rolls back as a whole.
type Result struct {
	Valid               int                  `json:"valid"`
	Invalid             int                  `json:"invalid"`
	InvalidTransactions []InvalidTransaction `json:"invalidTransactions"`
}

// Service reconciles provider report batches against the donation ledger.
type Service interface {
	// ProcessReport resolves each transaction to a KID, commits matched
	// transactions as donations and reports the rest. Safe to re-run: the
	// ledger's external reference idempotency absorbs redelivery.
	ProcessReport(ctx context.Context, methodID int, report Report) (Result, error)
}
