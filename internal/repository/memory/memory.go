package memory

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/repository"
)

// Store keeps every collection in process memory.
type Store struct {
	mu      sync.Mutex
	now     func() time.Time
	txs     map[string]core.Transaction
	periods map[string]core.Period
	bloods  map[string]core.BloodPressure
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:     time.Now,
		txs:     make(map[string]core.Transaction),
		periods: make(map[string]core.Period),
		bloods:  make(map[string]core.BloodPressure),
	}
}

// NewFromFiles seeds accounting periods from base/seed_periods.txt. Each
// line reads "label,year,start,end" with ISO dates; malformed lines are
// skipped.
func NewFromFiles(base string) *Store {
	s := New()
	for _, line := range readLines(filepath.Join(base, "seed_periods.txt")) {
		p, err := parsePeriodLine(line)
		if err != nil {
			continue
		}
		_, _ = s.CreatePeriod(context.Background(), p)
	}
	return s
}

func parsePeriodLine(line string) (core.Period, error) {
	parts := strings.Split(line, ",")
	if len(parts) != 4 {
		return core.Period{}, fmt.Errorf("expected 4 fields, got %d", len(parts))
	}
	year, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return core.Period{}, err
	}
	start, err := civil.ParseDate(strings.TrimSpace(parts[2]))
	if err != nil {
		return core.Period{}, err
	}
	end, err := civil.ParseDate(strings.TrimSpace(parts[3]))
	if err != nil {
		return core.Period{}, err
	}
	p := core.Period{Month: strings.TrimSpace(parts[0]), Year: year, Start: start, End: end}
	return p, p.Validate()
}

// SetClock replaces the clock used for created/modified timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	tx.ID = uuid.NewString()
	tx.CreatedAt, tx.ModifiedAt = now, now
	tx.Version = 1
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx core.Transaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.txs[tx.ID]
	if !ok || old.Domain != tx.Domain {
		return core.Transaction{}, repository.ErrNotFound
	}
	tx.CreatedAt = old.CreatedAt
	tx.ModifiedAt = s.now()
	tx.Version = old.Version + 1
	s.txs[tx.ID] = tx
	return tx, nil
}

func (s *Store) DeleteTransaction(_ context.Context, domain core.Domain, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.txs[id]
	if !ok || old.Domain != domain {
		return repository.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) GetTransaction(_ context.Context, domain core.Domain, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok || tx.Domain != domain {
		return core.Transaction{}, repository.ErrNotFound
	}
	return tx, nil
}

func (s *Store) ListTransactions(_ context.Context, domain core.Domain) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.txs))
	for _, tx := range s.txs {
		if tx.Domain == domain {
			out = append(out, tx)
		}
	}
	sortTransactions(out, repository.Descending)
	return out, nil
}

func (s *Store) QueryByDateRange(_ context.Context, q repository.Query) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0)
	for _, tx := range s.txs {
		if q.Matches(tx) {
			out = append(out, tx)
		}
	}
	sortTransactions(out, q.Order)
	return out, nil
}

// sortTransactions orders by date, then creation time, then ID so results
// are stable across calls.
func sortTransactions(txs []core.Transaction, order repository.Order) {
	sort.Slice(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if order == repository.Descending {
			a, b = b, a
		}
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func (s *Store) CreatePeriod(_ context.Context, p core.Period) (core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	p.ID = uuid.NewString()
	p.CreatedAt, p.ModifiedAt = now, now
	s.periods[p.ID] = p
	return p, nil
}

func (s *Store) UpdatePeriod(_ context.Context, p core.Period) (core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.periods[p.ID]
	if !ok {
		return core.Period{}, repository.ErrNotFound
	}
	p.CreatedAt = old.CreatedAt
	p.ModifiedAt = s.now()
	s.periods[p.ID] = p
	return p, nil
}

func (s *Store) DeletePeriod(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.periods[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.periods, id)
	return nil
}

func (s *Store) GetPeriod(_ context.Context, id string) (core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[id]
	if !ok {
		return core.Period{}, repository.ErrNotFound
	}
	return p, nil
}

func (s *Store) ListPeriods(_ context.Context) ([]core.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Period, 0, len(s.periods))
	for _, p := range s.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Start != out[j].Start {
			return out[j].Start.Before(out[i].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateBloodPressure(_ context.Context, b core.BloodPressure) (core.BloodPressure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	b.ID = uuid.NewString()
	b.CreatedAt, b.ModifiedAt = now, now
	s.bloods[b.ID] = b
	return b, nil
}

func (s *Store) UpdateBloodPressure(_ context.Context, b core.BloodPressure) (core.BloodPressure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.bloods[b.ID]
	if !ok {
		return core.BloodPressure{}, repository.ErrNotFound
	}
	b.CreatedAt = old.CreatedAt
	b.ModifiedAt = s.now()
	s.bloods[b.ID] = b
	return b, nil
}

func (s *Store) DeleteBloodPressure(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bloods[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.bloods, id)
	return nil
}

func (s *Store) GetBloodPressure(_ context.Context, id string) (core.BloodPressure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bloods[id]
	if !ok {
		return core.BloodPressure{}, repository.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListBloodPressure(_ context.Context) ([]core.BloodPressure, error) {
	return s.bloodsWhere(func(core.BloodPressure) bool { return true }), nil
}

func (s *Store) BloodPressureByDateRange(_ context.Context, w fiscal.Window) ([]core.BloodPressure, error) {
	return s.bloodsWhere(func(b core.BloodPressure) bool { return w.Contains(b.Date) }), nil
}

// bloodsWhere returns matching readings, newest first.
func (s *Store) bloodsWhere(keep func(core.BloodPressure) bool) []core.BloodPressure {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.BloodPressure, 0)
	for _, b := range s.bloods {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[j].Date.Before(out[i].Date)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	seen := map[string]struct{}{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
