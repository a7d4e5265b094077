package sheets

import (
	"fmt"
	"strconv"
	"strings"

	"familyledger/internal/core"
	"familyledger/internal/report"
)

// Sheet names of the mirrored collections.
const (
	SheetAccounts      = "Accounts"
	SheetCredit        = "Credit"
	SheetPeriods       = "Periods"
	SheetBloodPressure = "BloodPressure"
	SummaryBase        = "Summary"
)

// SheetFor maps a transaction domain to its mirror sheet.
func SheetFor(d core.Domain) string {
	if d == core.Credit {
		return SheetCredit
	}
	return SheetAccounts
}

// TransactionRow renders a transaction without its ID column.
func TransactionRow(tx core.Transaction) []any {
	return []any{
		tx.Date.String(),
		tx.Details,
		tx.Amount.Decimal().String(),
		tx.Inflow,
		tx.Remark,
		tx.Version,
	}
}

func PeriodRow(p core.Period) []any {
	return []any{p.Month, p.Year, p.Start.String(), p.End.String()}
}

func BloodPressureRow(b core.BloodPressure) []any {
	return []any{
		b.Date.String(),
		b.Morning.String(),
		b.Evening.String(),
		b.Morning.IsHigh() || b.Evening.IsHigh(),
		b.Remark,
	}
}

// SummaryRows renders a year summary as a header, one row per month and a
// total row.
func SummaryRows(s report.YearSummary) [][]any {
	rows := make([][]any, 0, len(s.Months)+2)
	rows = append(rows, []any{"Month", "Start", "End", "Income", "Expense", "Balance"})
	for _, m := range s.Months {
		rows = append(rows, []any{
			m.Label,
			m.Window.Start.String(),
			m.Window.End.String(),
			m.Income.String(),
			m.Expense.String(),
			m.Balance.String(),
		})
	}
	rows = append(rows, []any{"Total", "", "", s.Total.Income.String(), s.Total.Expense.String(), s.Total.Balance.String()})
	return rows
}

// YearPrefixedName returns "<year> <base>" unless base already starts with
// a 4-digit year.
func YearPrefixedName(base string, year int) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return base
	}
	if len(base) >= 5 {
		if y, err := strconv.Atoi(base[0:4]); err == nil && base[4] == ' ' && y > 1900 && y < 3000 {
			return base
		}
	}
	return fmt.Sprintf("%d %s", year, base)
}
