// Package report aggregates ledger transactions into accounting-month
// summaries. Every function here is pure: inputs are never modified and the
// same inputs always produce the same output.
package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/months"
)

// Totals are the sums of one window. Balance is always Income - Expense.
type Totals struct {
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Balance      decimal.Decimal `json:"balance"`
	IncomeCount  int             `json:"incomeCount"`
	ExpenseCount int             `json:"expenseCount"`
}

func (t Totals) add(o Totals) Totals {
	t.Income = t.Income.Add(o.Income)
	t.Expense = t.Expense.Add(o.Expense)
	t.Balance = t.Balance.Add(o.Balance)
	t.IncomeCount += o.IncomeCount
	t.ExpenseCount += o.ExpenseCount
	return t
}

// MonthTotals is one row of a year summary.
type MonthTotals struct {
	Label    string        `json:"month"`
	Ordinal  int           `json:"ordinal"`
	PeriodID string        `json:"periodId,omitempty"`
	Window   fiscal.Window `json:"window"`
	Totals
}

// YearSummary holds the accounting months of one calendar year in month
// order, plus grand totals.
type YearSummary struct {
	Year   int           `json:"year"`
	Months []MonthTotals `json:"months"`
	Total  Totals        `json:"total"`
}

// ByLabel returns the month label to totals mapping.
func (s YearSummary) ByLabel() map[string]Totals {
	out := make(map[string]Totals, len(s.Months))
	for _, m := range s.Months {
		out[m.Label] = m.Totals
	}
	return out
}

// SummarizeYear buckets account transactions into the stored periods of the
// given calendar year.
//
// Periods are ordered by month; unrecognized labels sort last. When several
// periods share a label the row keeps its first position and takes the
// totals of the last one.
func SummarizeYear(periods []core.Period, txs []core.Transaction, year int) YearSummary {
	selected := make([]core.Period, 0, len(periods))
	for _, p := range periods {
		if p.Year == year {
			selected = append(selected, p)
		}
	}
	sort.SliceStable(selected, func(i, j int) bool {
		return sortOrdinal(selected[i].Month) < sortOrdinal(selected[j].Month)
	})

	summary := YearSummary{Year: year, Months: make([]MonthTotals, 0, len(selected))}
	index := make(map[string]int, len(selected))
	for _, p := range selected {
		w := fiscal.Window{Start: p.Start, End: p.End}
		ordinal, _ := months.NameToOrdinal(p.Month)
		row := MonthTotals{
			Label:    p.Month,
			Ordinal:  ordinal,
			PeriodID: p.ID,
			Window:   w,
			Totals:   sumWindow(txs, w),
		}
		if i, ok := index[p.Month]; ok {
			summary.Months[i] = row
			continue
		}
		index[p.Month] = len(summary.Months)
		summary.Months = append(summary.Months, row)
	}

	for _, m := range summary.Months {
		summary.Total = summary.Total.add(m.Totals)
	}
	return summary
}

func sortOrdinal(label string) int {
	if n, ok := months.NameToOrdinal(label); ok {
		return n
	}
	return 13
}

// SummarizeAccounts sums the transactions that fall inside w.
func SummarizeAccounts(txs []core.Transaction, w fiscal.Window) Totals {
	return sumWindow(txs, w)
}

func sumWindow(txs []core.Transaction, w fiscal.Window) Totals {
	var t Totals
	for _, tx := range txs {
		if !w.Contains(tx.Date) {
			continue
		}
		amount := tx.Amount.Decimal()
		if tx.Inflow {
			t.Income = t.Income.Add(amount)
			t.IncomeCount++
		} else {
			t.Expense = t.Expense.Add(amount)
			t.ExpenseCount++
		}
	}
	t.Balance = t.Income.Sub(t.Expense)
	return t
}

// CreditMonth is the statement of one accounting month of the credit card.
type CreditMonth struct {
	Window       fiscal.Window      `json:"window"`
	Expense      decimal.Decimal    `json:"expense"`
	Cashback     decimal.Decimal    `json:"cashback"`
	Net          decimal.Decimal    `json:"net"`
	Transactions []core.Transaction `json:"transactions"`
}

// SummarizeCredit sums credit expenses and cashback inside w. Transactions
// lists the in-window records in input order.
func SummarizeCredit(txs []core.Transaction, w fiscal.Window) CreditMonth {
	out := CreditMonth{Window: w, Transactions: make([]core.Transaction, 0)}
	for _, tx := range txs {
		if !w.Contains(tx.Date) {
			continue
		}
		out.Transactions = append(out.Transactions, tx)
		if tx.Inflow {
			out.Cashback = out.Cashback.Add(tx.Amount.Decimal())
		} else {
			out.Expense = out.Expense.Add(tx.Amount.Decimal())
		}
	}
	out.Net = out.Expense.Sub(out.Cashback)
	return out
}

// RangeSummary is the account view of an arbitrary date range.
type RangeSummary struct {
	Window       fiscal.Window      `json:"window"`
	Incomes      []core.Transaction `json:"incomes"`
	Expenses     []core.Transaction `json:"expenses"`
	TotalIncome  decimal.Decimal    `json:"totalIncome"`
	TotalExpense decimal.Decimal    `json:"totalExpense"`
	Balance      decimal.Decimal    `json:"balance"`
}

// SummarizeRange totals the income and expense result sets of a range
// search. Either set may be empty.
func SummarizeRange(w fiscal.Window, incomes, expenses []core.Transaction) RangeSummary {
	out := RangeSummary{
		Window:   w,
		Incomes:  append(make([]core.Transaction, 0, len(incomes)), incomes...),
		Expenses: append(make([]core.Transaction, 0, len(expenses)), expenses...),
	}
	out.TotalIncome = sumAmounts(incomes)
	out.TotalExpense = sumAmounts(expenses)
	out.Balance = out.TotalIncome.Sub(out.TotalExpense)
	return out
}

func sumAmounts(txs []core.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount.Decimal())
	}
	return total
}
