package ledger

import "github.com/shopspring/decimal"

var (
	eleven = decimal.NewFromInt(11)
	twelve = decimal.NewFromInt(12)
)

// TuitionSchedule resolves a fee template to the tuition owed in each of the
// 12 academic months, April first.
//
// An explicit breakdown wins: each named month resolves to its flat total or
// the sum of its itemized components, and months the breakdown omits owe
// nothing. Without a breakdown, a flat annual amount is split so that the
// first 11 months each carry floor(annual/12) and March absorbs the
// remainder, keeping the schedule's sum exactly equal to the annual amount.
// An empty template yields twelve zeros.
func TuitionSchedule(tmpl FeeTemplate) [12]decimal.Decimal {
	var schedule [12]decimal.Decimal

	if len(tmpl.Months) > 0 {
		byName := make(map[string]decimal.Decimal, len(tmpl.Months))
		for _, entry := range tmpl.Months {
			byName[entry.Month] = entry.Amount.Total()
		}
		for i := range schedule {
			schedule[i] = byName[MonthName(i)]
		}
		return schedule
	}

	if tmpl.AnnualAmount.IsPositive() {
		base := tmpl.AnnualAmount.Div(twelve).Floor()
		for i := 0; i < 11; i++ {
			schedule[i] = base
		}
		schedule[11] = tmpl.AnnualAmount.Sub(base.Mul(eleven))
	}

	return schedule
}
