// Package repository defines the storage contract the ledger services are
// written against.
package repository

import (
	"context"
	"errors"
	"strings"

	"familyledger/internal/core"
	"familyledger/internal/fiscal"
)

// PrefixUpperBound is appended to a details prefix to build the upper bound
// of a "begins with" range query.
const PrefixUpperBound = "\uf8ff"

var ErrNotFound = errors.New("record not found")

// Order of a result set by date.
type Order int

const (
	Ascending Order = iota
	Descending
)

// Query selects transactions of one domain inside an inclusive date window.
// Inflow, Details and DetailsPrefix are optional equality/range filters.
// DetailsPrefix is case-sensitive and matches only at the start of the text.
type Query struct {
	Domain        core.Domain
	Window        fiscal.Window
	Inflow        *bool
	Details       string
	DetailsPrefix string
	Order         Order
}

// Matches applies the non-date filters of q to tx.
func (q Query) Matches(tx core.Transaction) bool {
	if tx.Domain != q.Domain {
		return false
	}
	if !q.Window.Contains(tx.Date) {
		return false
	}
	if q.Inflow != nil && tx.Inflow != *q.Inflow {
		return false
	}
	if q.Details != "" && tx.Details != q.Details {
		return false
	}
	if q.DetailsPrefix != "" {
		upper := q.DetailsPrefix + PrefixUpperBound
		if strings.Compare(tx.Details, q.DetailsPrefix) < 0 || strings.Compare(tx.Details, upper) > 0 {
			return false
		}
	}
	return true
}

// Bool returns a pointer for Query.Inflow.
func Bool(v bool) *bool {
	return &v
}

// Ports for outbound adapters.
type (
	TransactionStore interface {
		CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
		DeleteTransaction(ctx context.Context, domain core.Domain, id string) error
		GetTransaction(ctx context.Context, domain core.Domain, id string) (core.Transaction, error)
		// ListTransactions returns every record of a domain, newest first.
		ListTransactions(ctx context.Context, domain core.Domain) ([]core.Transaction, error)
		QueryByDateRange(ctx context.Context, q Query) ([]core.Transaction, error)
	}

	PeriodStore interface {
		CreatePeriod(ctx context.Context, p core.Period) (core.Period, error)
		UpdatePeriod(ctx context.Context, p core.Period) (core.Period, error)
		DeletePeriod(ctx context.Context, id string) error
		GetPeriod(ctx context.Context, id string) (core.Period, error)
		// ListPeriods returns every period, latest start first.
		ListPeriods(ctx context.Context) ([]core.Period, error)
	}

	BloodPressureStore interface {
		CreateBloodPressure(ctx context.Context, b core.BloodPressure) (core.BloodPressure, error)
		UpdateBloodPressure(ctx context.Context, b core.BloodPressure) (core.BloodPressure, error)
		DeleteBloodPressure(ctx context.Context, id string) error
		GetBloodPressure(ctx context.Context, id string) (core.BloodPressure, error)
		ListBloodPressure(ctx context.Context) ([]core.BloodPressure, error)
		BloodPressureByDateRange(ctx context.Context, w fiscal.Window) ([]core.BloodPressure, error)
	}

	Store interface {
		TransactionStore
		PeriodStore
		BloodPressureStore
		Close() error
	}
)
