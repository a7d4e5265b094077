package http

import (
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/months"
	"familyledger/internal/report"
)

func parseDate(field, s string) (civil.Date, error) {
	d, err := civil.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return civil.Date{}, invalidInput(fmt.Errorf("%s: expected YYYY-MM-DD, got %q", field, s))
	}
	return d, nil
}

// transactionRequest accepts both direction field names; only the one that
// belongs to the target domain is read.
type transactionRequest struct {
	Date       string      `json:"date" validate:"required"`
	Amount     core.Amount `json:"amount" validate:"required"`
	Details    string      `json:"details" validate:"required,max=200"`
	Remark     string      `json:"remark" validate:"max=500"`
	IsInCome   *bool       `json:"isInCome"`
	IsCashback *bool       `json:"isCashback"`
}

func (req transactionRequest) toTransaction(domain core.Domain) (core.Transaction, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	inflow := req.IsInCome
	if domain == core.Credit {
		inflow = req.IsCashback
	}
	return core.Transaction{
		Domain:  domain,
		Date:    date,
		Amount:  req.Amount,
		Details: strings.TrimSpace(req.Details),
		Remark:  strings.TrimSpace(req.Remark),
		Inflow:  inflow != nil && *inflow,
	}, nil
}

type transactionResponse struct {
	ID         string      `json:"id"`
	Domain     core.Domain `json:"domain"`
	Date       civil.Date  `json:"date"`
	Amount     core.Amount `json:"amount"`
	Details    string      `json:"details"`
	Remark     string      `json:"remark,omitempty"`
	IsInCome   *bool       `json:"isInCome,omitempty"`
	IsCashback *bool       `json:"isCashback,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
	ModifiedAt time.Time   `json:"modifiedAt"`
	Version    int64       `json:"version"`
}

func newTransactionResponse(tx core.Transaction) transactionResponse {
	out := transactionResponse{
		ID:         tx.ID,
		Domain:     tx.Domain,
		Date:       tx.Date,
		Amount:     tx.Amount,
		Details:    tx.Details,
		Remark:     tx.Remark,
		CreatedAt:  tx.CreatedAt,
		ModifiedAt: tx.ModifiedAt,
		Version:    tx.Version,
	}
	inflow := tx.Inflow
	if tx.Domain == core.Credit {
		out.IsCashback = &inflow
	} else {
		out.IsInCome = &inflow
	}
	return out
}

func newTransactionResponses(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, newTransactionResponse(tx))
	}
	return out
}

type periodRequest struct {
	Month       string `json:"month" validate:"required"`
	Year        int    `json:"year" validate:"required,gte=1900,lte=9999"`
	PeriodStart string `json:"periodStart" validate:"required"`
	PeriodEnd   string `json:"periodEnd" validate:"required"`
}

func (req periodRequest) toPeriod() (core.Period, error) {
	start, err := parseDate("periodStart", req.PeriodStart)
	if err != nil {
		return core.Period{}, err
	}
	end, err := parseDate("periodEnd", req.PeriodEnd)
	if err != nil {
		return core.Period{}, err
	}
	return core.Period{Month: strings.TrimSpace(req.Month), Year: req.Year, Start: start, End: end}, nil
}

type periodResponse struct {
	ID          string     `json:"id,omitempty"`
	Month       string     `json:"month"`
	Year        int        `json:"year"`
	DisplayYear int        `json:"displayYear"`
	PeriodStart civil.Date `json:"periodStart"`
	PeriodEnd   civil.Date `json:"periodEnd"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	ModifiedAt  *time.Time `json:"modifiedAt,omitempty"`
}

func newPeriodResponse(p core.Period) periodResponse {
	out := periodResponse{
		ID:          p.ID,
		Month:       p.Month,
		Year:        p.Year,
		DisplayYear: months.DisplayYear(p.Year),
		PeriodStart: p.Start,
		PeriodEnd:   p.End,
	}
	if !p.CreatedAt.IsZero() {
		out.CreatedAt, out.ModifiedAt = &p.CreatedAt, &p.ModifiedAt
	}
	return out
}

type bloodPressureRequest struct {
	Date    string       `json:"date" validate:"required"`
	Morning core.Reading `json:"morning"`
	Evening core.Reading `json:"evening"`
	Remark  string       `json:"remark" validate:"max=500"`
}

func (req bloodPressureRequest) toBloodPressure() (core.BloodPressure, error) {
	date, err := parseDate("date", req.Date)
	if err != nil {
		return core.BloodPressure{}, err
	}
	return core.BloodPressure{
		Date:    date,
		Morning: req.Morning,
		Evening: req.Evening,
		Remark:  strings.TrimSpace(req.Remark),
	}, nil
}

type bloodPressureResponse struct {
	ID          string       `json:"id"`
	Date        civil.Date   `json:"date"`
	Morning     core.Reading `json:"morning"`
	Evening     core.Reading `json:"evening"`
	MorningHigh bool         `json:"morningHigh"`
	EveningHigh bool         `json:"eveningHigh"`
	Remark      string       `json:"remark,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	ModifiedAt  time.Time    `json:"modifiedAt"`
}

func newBloodPressureResponse(b core.BloodPressure) bloodPressureResponse {
	return bloodPressureResponse{
		ID:          b.ID,
		Date:        b.Date,
		Morning:     b.Morning,
		Evening:     b.Evening,
		MorningHigh: b.Morning.IsHigh(),
		EveningHigh: b.Evening.IsHigh(),
		Remark:      b.Remark,
		CreatedAt:   b.CreatedAt,
		ModifiedAt:  b.ModifiedAt,
	}
}

type monthResponse struct {
	Month  string        `json:"month"`
	Year   int           `json:"year"`
	Window fiscal.Window `json:"window"`
	report.Totals
}

type creditMonthResponse struct {
	Month        string                `json:"month"`
	Year         int                   `json:"year"`
	Window       fiscal.Window         `json:"window"`
	Expense      string                `json:"expense"`
	Cashback     string                `json:"cashback"`
	Net          string                `json:"net"`
	Transactions []transactionResponse `json:"transactions"`
}

func newCreditMonthResponse(label string, year int, m report.CreditMonth) creditMonthResponse {
	return creditMonthResponse{
		Month:        label,
		Year:         year,
		Window:       m.Window,
		Expense:      m.Expense.String(),
		Cashback:     m.Cashback.String(),
		Net:          m.Net.String(),
		Transactions: newTransactionResponses(m.Transactions),
	}
}

type rangeResponse struct {
	Window       fiscal.Window         `json:"window"`
	Incomes      []transactionResponse `json:"incomes"`
	Expenses     []transactionResponse `json:"expenses"`
	TotalIncome  string                `json:"totalIncome"`
	TotalExpense string                `json:"totalExpense"`
	Balance      string                `json:"balance"`
}

func newRangeResponse(s report.RangeSummary) rangeResponse {
	return rangeResponse{
		Window:       s.Window,
		Incomes:      newTransactionResponses(s.Incomes),
		Expenses:     newTransactionResponses(s.Expenses),
		TotalIncome:  s.TotalIncome.String(),
		TotalExpense: s.TotalExpense.String(),
		Balance:      s.Balance.String(),
	}
}

type openSessionRequest struct {
	User string `json:"user" validate:"required,max=100"`
}
