package report

import (
	"github.com/shopspring/decimal"

	"familyledger/internal/core"
	"familyledger/internal/fiscal"
)

// LabeledAmount is one value of a cross-period statistic.
type LabeledAmount struct {
	Label  string          `json:"month"`
	Amount decimal.Decimal `json:"total"`
}

// ExpenseStats describes a series of per-month totals.
type ExpenseStats struct {
	Max      decimal.Decimal `json:"max"`
	MaxLabel string          `json:"maxMonth"`
	Min      decimal.Decimal `json:"min"`
	MinLabel string          `json:"minMonth"`
	Average  decimal.Decimal `json:"avg"`
	Count    int             `json:"count"`
}

// Stats scans the series once. On ties the first occurrence keeps the
// label. Every point counts toward the average, including zero months. An
// empty series yields zero values and empty labels.
func Stats(points []LabeledAmount) ExpenseStats {
	var s ExpenseStats
	if len(points) == 0 {
		return s
	}
	sum := decimal.Zero
	for i, p := range points {
		sum = sum.Add(p.Amount)
		if i == 0 || p.Amount.GreaterThan(s.Max) {
			s.Max, s.MaxLabel = p.Amount, p.Label
		}
		if i == 0 || p.Amount.LessThan(s.Min) {
			s.Min, s.MinLabel = p.Amount, p.Label
		}
	}
	s.Count = len(points)
	s.Average = sum.Div(decimal.NewFromInt(int64(s.Count)))
	return s
}

// CreditYearSummary is the yearly credit-card view.
type CreditYearSummary struct {
	Year          int             `json:"year"`
	Months        []LabeledAmount `json:"months"`
	TotalExpense  decimal.Decimal `json:"totalExpenses"`
	TotalCashback decimal.Decimal `json:"totalCashback"`
	Stats         ExpenseStats    `json:"stats"`
}

// CreditYear sweeps the twelve accounting months of year. January's window
// starts in the previous calendar year but is reported under year.
func CreditYear(txs []core.Transaction, year int) CreditYearSummary {
	out := CreditYearSummary{Year: year, Months: make([]LabeledAmount, 0, 12)}
	for _, lw := range fiscal.YearWindows(year) {
		month := SummarizeCredit(txs, lw.Window)
		out.Months = append(out.Months, LabeledAmount{Label: lw.Label, Amount: month.Expense})
		out.TotalExpense = out.TotalExpense.Add(month.Expense)
		out.TotalCashback = out.TotalCashback.Add(month.Cashback)
	}
	out.Stats = Stats(out.Months)
	return out
}
