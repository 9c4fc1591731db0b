// Package ledger computes the month-by-month fee statement for one student.
// The computation is a pure function of its inputs: it performs no I/O, holds
// no state between calls and is safe to invoke concurrently.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthStatus enumerates payment states of an academic month.
type MonthStatus string

const (
	// StatusPaid marks a fully settled month.
	StatusPaid MonthStatus = "Paid"
	// StatusPartiallyPaid marks a month with a partial allocation.
	StatusPartiallyPaid MonthStatus = "PartiallyPaid"
	// StatusDue marks a month with no allocation.
	StatusDue MonthStatus = "Due"
)

// ServiceType enumerates recurring add-on charges.
type ServiceType string

const (
	ServiceHostel    ServiceType = "Hostel"
	ServiceTransport ServiceType = "Transport"
)

// Component is one labelled line of an itemized monthly amount.
type Component struct {
	Label  string
	Amount decimal.Decimal
}

// MonthAmountKind tags the variant held by a MonthAmount.
type MonthAmountKind int

const (
	// AmountFlat holds a single total.
	AmountFlat MonthAmountKind = iota
	// AmountItemized holds a list of components summed on resolution.
	AmountItemized
)

// MonthAmount is the tagged variant for one month of a fee template:
// either a flat total or an itemized component list.
type MonthAmount struct {
	Kind  MonthAmountKind
	Flat  decimal.Decimal
	Items []Component
}

// FlatAmount builds a flat-total month amount.
func FlatAmount(total decimal.Decimal) MonthAmount {
	return MonthAmount{Kind: AmountFlat, Flat: total}
}

// ItemizedAmount builds an itemized month amount.
func ItemizedAmount(items ...Component) MonthAmount {
	return MonthAmount{Kind: AmountItemized, Items: items}
}

// Total resolves the variant to its monetary value.
func (a MonthAmount) Total() decimal.Decimal {
	if a.Kind == AmountItemized {
		sum := decimal.Zero
		for _, item := range a.Items {
			sum = sum.Add(item.Amount)
		}
		return sum
	}
	return a.Flat
}

// TemplateMonth is one entry of an explicit monthly breakdown.
type TemplateMonth struct {
	Month  string
	Amount MonthAmount
}

// FeeTemplate describes the tuition owed by a class. Either Months carries an
// explicit breakdown or AnnualAmount carries a flat figure split across the
// session; an empty template yields zero tuition.
type FeeTemplate struct {
	AnnualAmount decimal.Decimal
	Months       []TemplateMonth
}

// ServiceEnrollment is a recurring charge attached to a student. The charge
// applies from its start index onward; an inactive enrollment contributes
// nothing. StartDate, when recorded, takes precedence over the adjustment-log
// scan used for history persisted before the field existed.
type ServiceEnrollment struct {
	Type          ServiceType
	MonthlyCharge decimal.Decimal
	Active        bool
	StartDate     *time.Time
}

// AdjustmentLog is one audit-trail entry of an administrative action.
type AdjustmentLog struct {
	Date   time.Time
	Reason string
	Amount decimal.Decimal
}

// Payment is one recorded payment. Payments are append-only inputs; the
// ledger never mutates them.
type Payment struct {
	Amount decimal.Decimal
	PaidAt time.Time
}

// FeeRecord carries the student's session-level fee row.
type FeeRecord struct {
	PreviousSessionDues decimal.Decimal
	DueDate             time.Time
}

// Input is the atomic snapshot the ledger is computed from. Callers must not
// mix rows read at different points in time; the result reflects the snapshot,
// not wall-clock now.
type Input struct {
	StudentID        string
	SessionStartYear int
	Template         FeeTemplate
	Services         []ServiceEnrollment
	AdjustmentLogs   []AdjustmentLog
	Payments         []Payment
	FeeRecord        FeeRecord
	AdmissionDate    time.Time
}

// MonthlyDue is one line of the computed statement.
type MonthlyDue struct {
	Month  string          `json:"month"`
	Year   int             `json:"year"`
	Total  decimal.Decimal `json:"total"`
	Paid   decimal.Decimal `json:"paid"`
	Status MonthStatus     `json:"status"`
}

// Ledger is the computed statement for one student and session. It is never
// persisted; every invocation rebuilds it from source rows.
type Ledger struct {
	TotalOutstanding        decimal.Decimal `json:"totalOutstanding"`
	CurrentInstallmentDue   decimal.Decimal `json:"currentInstallmentDue"`
	TotalAnnualFee          decimal.Decimal `json:"totalAnnualFee"`
	TotalPaid               decimal.Decimal `json:"totalPaid"`
	PreviousSessionDues     decimal.Decimal `json:"previousSessionDues"`
	PreviousSessionDuesPaid decimal.Decimal `json:"previousSessionDuesPaid"`
	MonthlyDues             []MonthlyDue    `json:"monthlyDues"`
}
