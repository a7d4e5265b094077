package memory

import (
	"context"
	"sync"

	"familyledger/internal/report"
	"familyledger/internal/sheets"
)

// Mirror records everything it is sent. Err, when set, is returned by every
// call.
type Mirror struct {
	mu        sync.Mutex
	rows      map[string]map[string][]any
	order     map[string][]string
	summaries map[int]report.YearSummary
	writes    int
	Err       error
}

var _ sheets.Mirror = (*Mirror)(nil)

func New() *Mirror {
	return &Mirror{
		rows:      map[string]map[string][]any{},
		order:     map[string][]string{},
		summaries: map[int]report.YearSummary{},
	}
}

func (m *Mirror) Upsert(_ context.Context, sheet, id string, row []any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.rows[sheet] == nil {
		m.rows[sheet] = map[string][]any{}
	}
	if _, ok := m.rows[sheet][id]; !ok {
		m.order[sheet] = append(m.order[sheet], id)
	}
	m.rows[sheet][id] = append([]any(nil), row...)
	return nil
}

func (m *Mirror) Remove(_ context.Context, sheet, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if _, ok := m.rows[sheet][id]; !ok {
		return nil
	}
	delete(m.rows[sheet], id)
	ids := m.order[sheet]
	for i, v := range ids {
		if v == id {
			m.order[sheet] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mirror) WriteYearSummary(_ context.Context, s report.YearSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.summaries[s.Year] = s
	m.writes++
	return nil
}

// Row returns the mirrored row for id.
func (m *Mirror) Row(sheet, id string) ([]any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sheet][id]
	return row, ok
}

// IDs returns the row keys of sheet in insertion order.
func (m *Mirror) IDs(sheet string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order[sheet]...)
}

func (m *Mirror) Summary(year int) (report.YearSummary, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[year]
	return s, ok
}

// SummaryWrites counts WriteYearSummary calls.
func (m *Mirror) SummaryWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
