package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Build composes the full statement for one student and session: tuition per
// month from the template, service charges from their start indices,
// chronological payment allocation, and the outstanding balance.
//
// Absent optional data (empty template, no logs, no active services) resolves
// through documented defaults and is never an error. A missing student
// reference or session year fails with ErrInvalidInput; negative amounts fail
// with MalformedRecordError.
func Build(in Input) (*Ledger, error) {
	if strings.TrimSpace(in.StudentID) == "" {
		return nil, fmt.Errorf("%w: student reference required", ErrInvalidInput)
	}
	if in.SessionStartYear <= 0 {
		return nil, fmt.Errorf("%w: session start year required", ErrInvalidInput)
	}
	if err := validateAmounts(in); err != nil {
		return nil, err
	}

	tuition := TuitionSchedule(in.Template)
	sessionStart := SessionStart(in.SessionStartYear)

	startIndices := make([]int, len(in.Services))
	for i, svc := range in.Services {
		startIndices[i] = StartIndex(svc, in.AdjustmentLogs, in.AdmissionDate, sessionStart)
	}

	var monthlyTotals [12]decimal.Decimal
	annualTotal := decimal.Zero
	for i := range monthlyTotals {
		total := tuition[i]
		for s, svc := range in.Services {
			if i >= startIndices[s] {
				total = total.Add(svc.MonthlyCharge)
			}
		}
		monthlyTotals[i] = total
		annualTotal = annualTotal.Add(total)
	}

	totalPaid := decimal.Zero
	for _, p := range in.Payments {
		totalPaid = totalPaid.Add(p.Amount)
	}

	previousDues := in.FeeRecord.PreviousSessionDues
	allocations, previousDuesPaid := Allocate(monthlyTotals, totalPaid, previousDues)

	dues := make([]MonthlyDue, 12)
	currentInstallment := decimal.Zero
	currentFound := false
	for i := range dues {
		dues[i] = MonthlyDue{
			Month:  MonthName(i),
			Year:   DisplayYear(i, in.SessionStartYear),
			Total:  monthlyTotals[i],
			Paid:   allocations[i].Paid,
			Status: allocations[i].Status,
		}
		if !currentFound && allocations[i].Status != StatusPaid {
			currentInstallment = monthlyTotals[i]
			currentFound = true
		}
	}

	outstanding := decimal.Max(decimal.Zero, annualTotal.Add(previousDues).Sub(totalPaid))

	return &Ledger{
		TotalOutstanding:        outstanding,
		CurrentInstallmentDue:   currentInstallment,
		TotalAnnualFee:          annualTotal,
		TotalPaid:               totalPaid,
		PreviousSessionDues:     previousDues,
		PreviousSessionDuesPaid: previousDuesPaid,
		MonthlyDues:             dues,
	}, nil
}

func validateAmounts(in Input) error {
	if in.Template.AnnualAmount.IsNegative() {
		return malformed("fee template", "negative annual amount")
	}
	for _, entry := range in.Template.Months {
		if entry.Amount.Kind == AmountItemized {
			for _, item := range entry.Amount.Items {
				if item.Amount.IsNegative() {
					return malformed(fmt.Sprintf("fee template month %q component %q", entry.Month, item.Label), "negative amount")
				}
			}
			continue
		}
		if entry.Amount.Flat.IsNegative() {
			return malformed(fmt.Sprintf("fee template month %q", entry.Month), "negative amount")
		}
	}
	for i, svc := range in.Services {
		if svc.MonthlyCharge.IsNegative() {
			return malformed(fmt.Sprintf("service enrollment %d (%s)", i, svc.Type), "negative monthly charge")
		}
	}
	for i, p := range in.Payments {
		if p.Amount.IsNegative() {
			return malformed(fmt.Sprintf("payment %d", i), "negative amount")
		}
	}
	if in.FeeRecord.PreviousSessionDues.IsNegative() {
		return malformed("fee record", "negative previous-session dues")
	}
	return nil
}
