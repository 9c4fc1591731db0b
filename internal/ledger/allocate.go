package ledger

import "github.com/shopspring/decimal"

// MonthAllocation is the allocator's verdict for one academic month.
type MonthAllocation struct {
	Paid   decimal.Decimal
	Status MonthStatus
}

// Allocate distributes the total recorded payments across previous-session
// dues first, then across the 12 current-session months in April..March
// order. A month is Paid when covered in full, PartiallyPaid when the
// remaining money covers only part of it, and Due otherwise. The fold is
// strict: no later month receives money while an earlier month is short.
func Allocate(monthlyTotals [12]decimal.Decimal, totalPaid, previousSessionDues decimal.Decimal) ([12]MonthAllocation, decimal.Decimal) {
	previousDuesPaid := decimal.Min(totalPaid, previousSessionDues)
	tracker := decimal.Max(decimal.Zero, totalPaid.Sub(previousDuesPaid))

	var months [12]MonthAllocation
	for i, total := range monthlyTotals {
		switch {
		case tracker.GreaterThanOrEqual(total):
			months[i] = MonthAllocation{Paid: total, Status: StatusPaid}
			tracker = tracker.Sub(total)
		case tracker.IsPositive():
			months[i] = MonthAllocation{Paid: tracker, Status: StatusPartiallyPaid}
			tracker = decimal.Zero
		default:
			months[i] = MonthAllocation{Paid: decimal.Zero, Status: StatusDue}
		}
	}
	return months, previousDuesPaid
}
