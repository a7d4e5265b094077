package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/repository"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func TestMigrationsApplied(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	repo.Close()

	// Running again on an up-to-date schema is a no-op.
	if err := RunMigrations(path); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	version, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != 2 || dirty {
		t.Fatalf("expected clean version 2, got %d dirty=%v", version, dirty)
	}
}

func TestTransactionCRUD(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	created, err := repo.CreateTransaction(ctx, core.Transaction{
		Domain:  core.Credit,
		Date:    date(2024, 2, 1),
		Amount:  "1,200",
		Details: "shoes",
		Remark:  "sale",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetTransaction(ctx, core.Credit, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Amount != "1,200" || got.Date != date(2024, 2, 1) || got.Inflow || got.Version != 1 {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !got.Amount.Decimal().Equal(core.Amount("1200").Decimal()) {
		t.Fatalf("expected legacy amount to parse, got %s", got.Amount.Decimal())
	}

	if _, err := repo.GetTransaction(ctx, core.Accounts, created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found in other domain, got %v", err)
	}

	got.Inflow = true
	updated, err := repo.UpdateTransaction(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 || !updated.Inflow {
		t.Fatalf("unexpected updated row: %+v", updated)
	}

	if err := repo.DeleteTransaction(ctx, core.Credit, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, core.Credit, created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestQueryByDateRangeFilters(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	seed := []core.Transaction{
		{Domain: core.Accounts, Date: date(2023, 12, 12), Amount: "1", Details: "outside"},
		{Domain: core.Accounts, Date: date(2023, 12, 13), Amount: "2", Details: "Market A"},
		{Domain: core.Accounts, Date: date(2024, 1, 3), Amount: "3", Details: "Market B"},
		{Domain: core.Accounts, Date: date(2024, 1, 12), Amount: "4", Details: "salary", Inflow: true},
		{Domain: core.Accounts, Date: date(2024, 1, 13), Amount: "5", Details: "outside"},
		{Domain: core.Credit, Date: date(2024, 1, 5), Amount: "6", Details: "Market C"},
	}
	for _, tx := range seed {
		if _, err := repo.CreateTransaction(ctx, tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	w := fiscal.Window{Start: date(2023, 12, 13), End: date(2024, 1, 12)}
	cases := []struct {
		name  string
		q     repository.Query
		first string
		count int
	}{
		{"window inclusive", repository.Query{Domain: core.Accounts, Window: w}, "Market A", 3},
		{"descending", repository.Query{Domain: core.Accounts, Window: w, Order: repository.Descending}, "salary", 3},
		{"income only", repository.Query{Domain: core.Accounts, Window: w, Inflow: repository.Bool(true)}, "salary", 1},
		{"prefix", repository.Query{Domain: core.Accounts, Window: w, DetailsPrefix: "Market"}, "Market A", 2},
		{"prefix is case sensitive", repository.Query{Domain: core.Accounts, Window: w, DetailsPrefix: "market"}, "", 0},
		{"exact details", repository.Query{Domain: core.Accounts, Window: w, Details: "Market B"}, "Market B", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := repo.QueryByDateRange(ctx, tc.q)
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			if len(got) != tc.count {
				t.Fatalf("expected %d rows, got %d", tc.count, len(got))
			}
			if tc.count > 0 && got[0].Details != tc.first {
				t.Fatalf("expected first %q, got %q", tc.first, got[0].Details)
			}
		})
	}
}

func TestSyncStatus(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	tx, err := repo.CreateTransaction(ctx, core.Transaction{Domain: core.Accounts, Date: date(2024, 1, 1), Amount: "1", Details: "a"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	pending, err := repo.PendingSync(ctx, 10)
	if err != nil || len(pending) != 1 {
		t.Fatalf("expected one pending row, got %d (err=%v)", len(pending), err)
	}

	// A stale version does not clear the pending flag.
	if err := repo.MarkSynced(ctx, tx.ID, tx.Version+1); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if pending, _ = repo.PendingSync(ctx, 10); len(pending) != 1 {
		t.Fatalf("expected row to stay pending")
	}

	if err := repo.MarkSynced(ctx, tx.ID, tx.Version); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if pending, _ = repo.PendingSync(ctx, 10); len(pending) != 0 {
		t.Fatalf("expected no pending rows, got %d", len(pending))
	}
}

func TestPeriodsAndBloodPressure(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	for _, p := range []core.Period{
		{Month: "มกราคม", Year: 2024, Start: date(2023, 12, 13), End: date(2024, 1, 12)},
		{Month: "กุมภาพันธ์", Year: 2024, Start: date(2024, 1, 13), End: date(2024, 2, 12)},
	} {
		if _, err := repo.CreatePeriod(ctx, p); err != nil {
			t.Fatalf("create period: %v", err)
		}
	}
	periods, err := repo.ListPeriods(ctx)
	if err != nil {
		t.Fatalf("list periods: %v", err)
	}
	if len(periods) != 2 || periods[0].Month != "กุมภาพันธ์" {
		t.Fatalf("expected latest period first, got %+v", periods)
	}

	periods[1].End = date(2024, 1, 14)
	if _, err := repo.UpdatePeriod(ctx, periods[1]); err != nil {
		t.Fatalf("update period: %v", err)
	}
	p, err := repo.GetPeriod(ctx, periods[1].ID)
	if err != nil || p.End != date(2024, 1, 14) {
		t.Fatalf("expected adjusted end, got %+v (err=%v)", p, err)
	}

	bp, err := repo.CreateBloodPressure(ctx, core.BloodPressure{
		Date:    date(2024, 3, 2),
		Morning: core.Reading{Systolic: 150, Diastolic: 95, Pulse: 80},
		Evening: core.Reading{Systolic: 120, Diastolic: 80},
	})
	if err != nil {
		t.Fatalf("create blood pressure: %v", err)
	}
	readings, err := repo.BloodPressureByDateRange(ctx, fiscal.Window{Start: date(2024, 3, 1), End: date(2024, 3, 2)})
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(readings) != 1 || readings[0].ID != bp.ID || !readings[0].Morning.IsHigh() || readings[0].Evening.Pulse != 0 {
		t.Fatalf("unexpected readings: %+v", readings)
	}
	if err := repo.DeleteBloodPressure(ctx, bp.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetBloodPressure(ctx, bp.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestTimestampTextSortsChronologically(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)
	times := []time.Time{
		base,
		base.Add(100 * time.Millisecond),
		base.Add(120 * time.Millisecond),
		base.Add(time.Second),
	}
	for i := 1; i < len(times); i++ {
		prev, cur := formatTime(times[i-1]), formatTime(times[i])
		if prev >= cur {
			t.Fatalf("expected %q to sort before %q", prev, cur)
		}
	}
	for _, ts := range times {
		if got := parseTime(formatTime(ts)); !got.Equal(ts) {
			t.Fatalf("round trip: expected %v, got %v", ts, got)
		}
	}
	legacy := base.Add(100 * time.Millisecond)
	if got := parseTime(legacy.Format(time.RFC3339Nano)); !got.Equal(legacy) {
		t.Fatalf("legacy layout: expected %v, got %v", legacy, got)
	}
}
