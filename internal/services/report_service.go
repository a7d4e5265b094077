package services

import (
	"context"
	"fmt"

	"cloud.google.com/go/civil"
	"golang.org/x/sync/errgroup"

	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/months"
	"familyledger/internal/report"
	"familyledger/internal/repository"
)

// ReportService answers the summary and search screens. Each call fetches
// fresh data; nothing is cached between calls.
type ReportService struct {
	txs     repository.TransactionStore
	periods repository.PeriodStore
}

func NewReportService(txs repository.TransactionStore, periods repository.PeriodStore) *ReportService {
	return &ReportService{txs: txs, periods: periods}
}

// calendarYear converts a display year and checks the result.
func calendarYear(display int) (int, error) {
	year := months.CalendarYear(display)
	if year < 1900 || year > 9999 {
		return 0, invalid(fmt.Errorf("%w: %d", core.ErrInvalidYear, display))
	}
	return year, nil
}

// YearSummary totals account transactions per stored period of a display
// year.
func (s *ReportService) YearSummary(ctx context.Context, displayYear int) (report.YearSummary, error) {
	year, err := calendarYear(displayYear)
	if err != nil {
		return report.YearSummary{}, err
	}
	return s.yearSummary(ctx, year)
}

// YearSummaryForCalendarYear is YearSummary keyed by calendar year.
func (s *ReportService) YearSummaryForCalendarYear(ctx context.Context, year int) (report.YearSummary, error) {
	if year < 1900 || year > 9999 {
		return report.YearSummary{}, invalid(fmt.Errorf("%w: %d", core.ErrInvalidYear, year))
	}
	return s.yearSummary(ctx, year)
}

func (s *ReportService) yearSummary(ctx context.Context, year int) (report.YearSummary, error) {
	periods, err := s.periods.ListPeriods(ctx)
	if err != nil {
		return report.YearSummary{}, storeErr("list periods", err)
	}

	span, ok := periodSpan(periods, year)
	if !ok {
		return report.SummarizeYear(nil, nil, year), nil
	}
	txs, err := s.txs.QueryByDateRange(ctx, repository.Query{Domain: core.Accounts, Window: span})
	if err != nil {
		return report.YearSummary{}, storeErr("query accounts", err)
	}
	return report.SummarizeYear(periods, txs, year), nil
}

// periodSpan covers every stored period of year. Periods can be adjusted by
// hand, so the span is taken from the records rather than the calendar.
func periodSpan(periods []core.Period, year int) (fiscal.Window, bool) {
	var span fiscal.Window
	found := false
	for _, p := range periods {
		if p.Year != year {
			continue
		}
		if !found || p.Start.Before(span.Start) {
			span.Start = p.Start
		}
		if !found || p.End.After(span.End) {
			span.End = p.End
		}
		found = true
	}
	return span, found
}

// AccountMonth totals the account transactions of one accounting month.
func (s *ReportService) AccountMonth(ctx context.Context, label string, displayYear int) (report.Totals, fiscal.Window, error) {
	w, err := s.labelWindow(label, displayYear)
	if err != nil {
		return report.Totals{}, fiscal.Window{}, err
	}
	txs, err := s.txs.QueryByDateRange(ctx, repository.Query{Domain: core.Accounts, Window: w})
	if err != nil {
		return report.Totals{}, fiscal.Window{}, storeErr("query accounts", err)
	}
	return report.SummarizeAccounts(txs, w), w, nil
}

// CreditMonth is the credit-card statement of one accounting month.
func (s *ReportService) CreditMonth(ctx context.Context, label string, displayYear int) (report.CreditMonth, error) {
	w, err := s.labelWindow(label, displayYear)
	if err != nil {
		return report.CreditMonth{}, err
	}
	txs, err := s.txs.QueryByDateRange(ctx, repository.Query{Domain: core.Credit, Window: w})
	if err != nil {
		return report.CreditMonth{}, storeErr("query credit", err)
	}
	return report.SummarizeCredit(txs, w), nil
}

func (s *ReportService) labelWindow(label string, displayYear int) (fiscal.Window, error) {
	year, err := calendarYear(displayYear)
	if err != nil {
		return fiscal.Window{}, err
	}
	w, err := fiscal.WindowForLabel(label, year)
	if err != nil {
		return fiscal.Window{}, invalid(err)
	}
	return w, nil
}

// CreditYear sweeps the twelve accounting months of a display year.
func (s *ReportService) CreditYear(ctx context.Context, displayYear int) (report.CreditYearSummary, error) {
	year, err := calendarYear(displayYear)
	if err != nil {
		return report.CreditYearSummary{}, err
	}
	txs, err := s.txs.QueryByDateRange(ctx, repository.Query{Domain: core.Credit, Window: fiscal.YearSpan(year)})
	if err != nil {
		return report.CreditYearSummary{}, storeErr("query credit", err)
	}
	return report.CreditYear(txs, year), nil
}

// AccountRange runs the income and expense searches of a range
// concurrently and totals them. Either failure fails the whole call.
func (s *ReportService) AccountRange(ctx context.Context, start, end civil.Date) (report.RangeSummary, error) {
	w, err := fiscal.NewWindow(start, end)
	if err != nil {
		return report.RangeSummary{}, invalid(err)
	}

	var incomes, expenses []core.Transaction
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		incomes, err = s.txs.QueryByDateRange(gctx, repository.Query{Domain: core.Accounts, Window: w, Inflow: repository.Bool(true)})
		if err != nil {
			return storeErr("query incomes", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		expenses, err = s.txs.QueryByDateRange(gctx, repository.Query{Domain: core.Accounts, Window: w, Inflow: repository.Bool(false)})
		if err != nil {
			return storeErr("query expenses", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return report.RangeSummary{}, err
	}
	return report.SummarizeRange(w, incomes, expenses), nil
}

// Search runs a validated date-range query.
func (s *ReportService) Search(ctx context.Context, q repository.Query) ([]core.Transaction, error) {
	if !q.Domain.IsValid() {
		return nil, invalid(core.ErrInvalidDomain)
	}
	if err := fiscal.ValidateRange(q.Window.Start, q.Window.End); err != nil {
		return nil, invalid(err)
	}
	txs, err := s.txs.QueryByDateRange(ctx, q)
	if err != nil {
		return nil, storeErr("search", err)
	}
	return txs, nil
}
