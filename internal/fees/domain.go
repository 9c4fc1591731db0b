// Package fees exposes the student fee statement over HTTP and persists the
// rows the ledger computation reads. The computation itself lives in
// internal/ledger and is reused by any caller that needs a statement.
package fees

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shiksha-erp/shiksha-erp/internal/ledger"
)

// Student is the identity row the statement is anchored to.
type Student struct {
	ID            uuid.UUID
	BranchID      uuid.UUID
	ClassID       uuid.UUID
	Name          string
	AdmissionDate time.Time
	Active        bool
}

// PaymentRow is one persisted payment. Rows are append-only; nothing in this
// package updates or deletes them.
type PaymentRow struct {
	ID        uuid.UUID       `json:"id"`
	StudentID uuid.UUID       `json:"studentId"`
	Amount    decimal.Decimal `json:"amount"`
	PaidAt    time.Time       `json:"paidAt"`
	Method    string          `json:"method"`
	Note      string          `json:"note,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Snapshot bundles every row the ledger reads, captured atomically. Loading
// it inside one repeatable-read transaction keeps a payment recorded mid-read
// from producing a statement no single point in time ever matched.
type Snapshot struct {
	Student        Student
	Template       ledger.FeeTemplate
	Services       []ledger.ServiceEnrollment
	AdjustmentLogs []ledger.AdjustmentLog
	Payments       []PaymentRow
	FeeRecord      ledger.FeeRecord
}

// RecordPaymentInput describes a payment to append.
type RecordPaymentInput struct {
	StudentID      uuid.UUID
	Amount         decimal.Decimal
	PaidAt         time.Time
	Method         string
	Note           string
	IdempotencyKey string
}

// Statement wraps the computed ledger with the identifiers callers key on.
type Statement struct {
	StudentID        uuid.UUID `json:"studentId"`
	SessionStartYear int       `json:"sessionStartYear"`
	ledger.Ledger
}
