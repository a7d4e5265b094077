package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/civil"

	"familyledger/internal/amqp"
	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/repository/memory"
	"familyledger/internal/services"
	"familyledger/internal/sheets"
	sheetsmem "familyledger/internal/sheets/memory"
	"familyledger/internal/storage"
)

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestHandleChange_UpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mirror := sheetsmem.New()
	w := NewSyncWorker(store, mirror, services.NewReportService(store, store), 10*time.Millisecond, 10)
	defer w.Close()

	tx, _ := store.CreateTransaction(ctx, core.Transaction{Domain: core.Credit, Date: date(2024, 1, 2), Amount: "1,200", Details: "tv"})
	msg := amqp.NewRecordChangeMessage(amqp.CollectionCredit, tx.ID, amqp.OpUpsert, tx.Version, 2024)
	if err := w.HandleChange(ctx, msg); err != nil {
		t.Fatalf("handle upsert: %v", err)
	}
	row, ok := mirror.Row(sheets.SheetCredit, tx.ID)
	if !ok || row[2] != "1200" {
		t.Fatalf("expected mirrored row, got %v", row)
	}

	if err := store.DeleteTransaction(ctx, core.Credit, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	del := amqp.NewRecordChangeMessage(amqp.CollectionCredit, tx.ID, amqp.OpDelete, tx.Version, 2024)
	if err := w.HandleChange(ctx, del); err != nil {
		t.Fatalf("handle delete: %v", err)
	}
	if _, ok := mirror.Row(sheets.SheetCredit, tx.ID); ok {
		t.Fatal("expected row removed")
	}

	// Credit changes never touch the account summary.
	time.Sleep(30 * time.Millisecond)
	if mirror.SummaryWrites() != 0 {
		t.Fatalf("unexpected summary writes: %d", mirror.SummaryWrites())
	}
}

func TestHandleChange_DebouncesSummary(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mirror := sheetsmem.New()
	w := NewSyncWorker(store, mirror, services.NewReportService(store, store), 20*time.Millisecond, 10)
	defer w.Close()

	jan, _ := fiscal.ResolveWindow(1, 2024)
	p, _ := store.CreatePeriod(ctx, core.Period{Month: "มกราคม", Year: 2024, Start: jan.Start, End: jan.End})
	if err := w.HandleChange(ctx, amqp.NewRecordChangeMessage(amqp.CollectionPeriods, p.ID, amqp.OpUpsert, 0, 2024)); err != nil {
		t.Fatalf("handle period: %v", err)
	}
	for i := 0; i < 3; i++ {
		tx, _ := store.CreateTransaction(ctx, core.Transaction{Domain: core.Accounts, Date: date(2024, 1, 5), Amount: "100", Details: "salary", Inflow: true})
		if err := w.HandleChange(ctx, amqp.NewRecordChangeMessage(amqp.CollectionAccounts, tx.ID, amqp.OpUpsert, 1, 2024)); err != nil {
			t.Fatalf("handle tx: %v", err)
		}
	}

	waitFor(t, func() bool { return mirror.SummaryWrites() == 1 })
	time.Sleep(40 * time.Millisecond)
	if mirror.SummaryWrites() != 1 {
		t.Fatalf("expected one collapsed summary write, got %d", mirror.SummaryWrites())
	}
	summary, _ := mirror.Summary(2024)
	if len(summary.Months) != 1 || summary.Months[0].Income.String() != "300" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if ids := mirror.IDs(sheets.SheetPeriods); len(ids) != 1 {
		t.Fatalf("expected mirrored period, got %v", ids)
	}
}

func TestHandleChange_MirrorFailureIsReturned(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	mirror := sheetsmem.New()
	mirror.Err = errors.New("quota exceeded")
	w := NewSyncWorker(store, mirror, services.NewReportService(store, store), time.Millisecond, 10)
	defer w.Close()

	b, _ := store.CreateBloodPressure(ctx, core.BloodPressure{Date: date(2024, 3, 1)})
	err := w.HandleChange(ctx, amqp.NewRecordChangeMessage(amqp.CollectionBloodPressure, b.ID, amqp.OpUpsert, 0, 0))
	if !errors.Is(err, mirror.Err) {
		t.Fatalf("expected mirror error so the message is requeued, got %v", err)
	}

	if err := w.HandleChange(ctx, amqp.NewRecordChangeMessage("unknown", "x", amqp.OpUpsert, 0, 0)); err != nil {
		t.Fatalf("unknown collections are dropped, got %v", err)
	}
}

func TestStartupSyncCheck(t *testing.T) {
	ctx := context.Background()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()

	mirror := sheetsmem.New()
	w := NewSyncWorker(repo, mirror, services.NewReportService(repo, repo), 5*time.Millisecond, 10)
	defer w.Close()

	tx, err := repo.CreateTransaction(ctx, core.Transaction{Domain: core.Accounts, Date: date(2024, 2, 1), Amount: "5", Details: "coffee"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := w.StartupSyncCheck(ctx); err != nil {
		t.Fatalf("startup sync: %v", err)
	}
	if _, ok := mirror.Row(sheets.SheetAccounts, tx.ID); !ok {
		t.Fatal("expected pending transaction mirrored")
	}
	pending, _ := repo.PendingSync(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("expected nothing pending, got %d", len(pending))
	}
	waitFor(t, func() bool { return mirror.SummaryWrites() == 1 })
}
