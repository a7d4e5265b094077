package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"familyledger/internal/amqp"
	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/report"
	"familyledger/internal/repository"
	"familyledger/internal/session"
	"familyledger/internal/sheets"
)

// SyncTracker is implemented by stores that remember which transaction
// versions reached the mirror.
type SyncTracker interface {
	PendingSync(ctx context.Context, limit int) ([]core.Transaction, error)
	MarkSynced(ctx context.Context, id string, version int64) error
	MarkSyncError(ctx context.Context, id string, version int64) error
}

// SummarySource renders the year summary of a calendar year.
type SummarySource interface {
	YearSummaryForCalendarYear(ctx context.Context, year int) (report.YearSummary, error)
}

// SyncWorker mirrors stored records to the spreadsheet and keeps the year
// summary sheets current.
type SyncWorker struct {
	store     repository.Store
	mirror    sheets.RecordMirror
	summaries sheets.SummaryWriter
	reports   SummarySource
	tracker   SyncTracker
	debounce  *session.Debouncer
	batchSize int
}

func NewSyncWorker(store repository.Store, mirror sheets.Mirror, reports SummarySource, debounce time.Duration, batchSize int) *SyncWorker {
	w := &SyncWorker{
		store:     store,
		mirror:    mirror,
		summaries: mirror,
		reports:   reports,
		debounce:  session.NewDebouncer(debounce),
		batchSize: batchSize,
	}
	if t, ok := store.(SyncTracker); ok {
		w.tracker = t
	}
	return w
}

// HandleChange applies one change message to the mirror.
func (w *SyncWorker) HandleChange(ctx context.Context, msg *amqp.RecordChangeMessage) error {
	slog.InfoContext(ctx, "Processing change message",
		"collection", msg.Collection,
		"id", msg.ID,
		"operation", msg.Operation,
		"version", msg.Version)

	var err error
	switch msg.Collection {
	case amqp.CollectionAccounts, amqp.CollectionCredit:
		err = w.syncTransaction(ctx, core.Domain(msg.Collection), msg.ID, msg.Operation)
	case amqp.CollectionPeriods:
		err = w.syncPeriod(ctx, msg.ID, msg.Operation)
	case amqp.CollectionBloodPressure:
		err = w.syncBloodPressure(ctx, msg.ID, msg.Operation)
	default:
		slog.WarnContext(ctx, "Dropping change for unknown collection", "collection", msg.Collection)
		return nil
	}
	if err != nil {
		return err
	}

	if msg.Year != 0 && (msg.Collection == amqp.CollectionAccounts || msg.Collection == amqp.CollectionPeriods) {
		w.ScheduleSummary(ctx, msg.Year)
	}
	return nil
}

func (w *SyncWorker) syncTransaction(ctx context.Context, domain core.Domain, id string, op amqp.Operation) error {
	sheet := sheets.SheetFor(domain)
	if op == amqp.OpDelete {
		return w.remove(ctx, sheet, id)
	}
	tx, err := w.store.GetTransaction(ctx, domain, id)
	if errors.Is(err, repository.ErrNotFound) {
		// Deleted after the message was sent; the delete message follows.
		return w.remove(ctx, sheet, id)
	}
	if err != nil {
		return fmt.Errorf("get transaction from storage: %w", err)
	}
	if err := w.mirror.Upsert(ctx, sheet, tx.ID, sheets.TransactionRow(tx)); err != nil {
		if w.tracker != nil {
			if markErr := w.tracker.MarkSyncError(ctx, tx.ID, tx.Version); markErr != nil {
				slog.ErrorContext(ctx, "Failed to mark sync error", "id", tx.ID, "error", markErr)
			}
		}
		return fmt.Errorf("mirror transaction: %w", err)
	}
	if w.tracker != nil {
		if err := w.tracker.MarkSynced(ctx, tx.ID, tx.Version); err != nil {
			// The mirror already has the row.
			slog.ErrorContext(ctx, "Failed to mark as synced", "id", tx.ID, "error", err)
		}
	}
	return nil
}

func (w *SyncWorker) syncPeriod(ctx context.Context, id string, op amqp.Operation) error {
	if op == amqp.OpDelete {
		return w.remove(ctx, sheets.SheetPeriods, id)
	}
	p, err := w.store.GetPeriod(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return w.remove(ctx, sheets.SheetPeriods, id)
	}
	if err != nil {
		return fmt.Errorf("get period from storage: %w", err)
	}
	if err := w.mirror.Upsert(ctx, sheets.SheetPeriods, p.ID, sheets.PeriodRow(p)); err != nil {
		return fmt.Errorf("mirror period: %w", err)
	}
	return nil
}

func (w *SyncWorker) syncBloodPressure(ctx context.Context, id string, op amqp.Operation) error {
	if op == amqp.OpDelete {
		return w.remove(ctx, sheets.SheetBloodPressure, id)
	}
	b, err := w.store.GetBloodPressure(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return w.remove(ctx, sheets.SheetBloodPressure, id)
	}
	if err != nil {
		return fmt.Errorf("get blood pressure from storage: %w", err)
	}
	if err := w.mirror.Upsert(ctx, sheets.SheetBloodPressure, b.ID, sheets.BloodPressureRow(b)); err != nil {
		return fmt.Errorf("mirror blood pressure: %w", err)
	}
	return nil
}

func (w *SyncWorker) remove(ctx context.Context, sheet, id string) error {
	if err := w.mirror.Remove(ctx, sheet, id); err != nil {
		return fmt.Errorf("remove %s row: %w", sheet, err)
	}
	slog.InfoContext(ctx, "Removed mirrored row", "sheet", sheet, "id", id)
	return nil
}

// ScheduleSummary queues a rewrite of the summary sheet for year. Bursts of
// changes to the same year collapse into one rewrite.
func (w *SyncWorker) ScheduleSummary(ctx context.Context, year int) {
	w.debounce.Trigger(ctx, strconv.Itoa(year), func(ctx context.Context) {
		if err := w.RefreshSummary(ctx, year); err != nil {
			slog.ErrorContext(ctx, "Failed to refresh year summary", "year", year, "error", err)
		}
	})
}

// RefreshSummary rebuilds and writes the summary sheet of year now.
func (w *SyncWorker) RefreshSummary(ctx context.Context, year int) error {
	summary, err := w.reports.YearSummaryForCalendarYear(ctx, year)
	if err != nil {
		return fmt.Errorf("build year summary: %w", err)
	}
	if err := ctx.Err(); err != nil {
		// A newer change superseded this refresh.
		return nil
	}
	if err := w.summaries.WriteYearSummary(ctx, summary); err != nil {
		return fmt.Errorf("write year summary: %w", err)
	}
	slog.InfoContext(ctx, "Year summary refreshed", "year", year, "months", len(summary.Months))
	return nil
}

// StartupSyncCheck mirrors transactions left pending by missed messages or
// worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	if w.tracker == nil {
		slog.InfoContext(ctx, "Store does not track sync state, skipping startup sync")
		return nil
	}
	pending, err := w.tracker.PendingSync(ctx, w.batchSize*5)
	if err != nil {
		return fmt.Errorf("get pending transactions for startup check: %w", err)
	}
	if len(pending) == 0 {
		slog.InfoContext(ctx, "No pending transactions found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending transactions on startup, processing...", "count", len(pending))

	years := map[int]struct{}{}
	successCount, errorCount := 0, 0
	for _, tx := range pending {
		if err := w.syncTransaction(ctx, tx.Domain, tx.ID, amqp.OpUpsert); err != nil {
			slog.ErrorContext(ctx, "Failed to sync transaction during startup", "id", tx.ID, "error", err)
			errorCount++
			continue
		}
		successCount++
		if tx.Domain == core.Accounts {
			years[summaryYear(tx)] = struct{}{}
		}
	}
	for year := range years {
		w.ScheduleSummary(ctx, year)
	}

	slog.InfoContext(ctx, "Startup sync completed",
		"total", len(pending),
		"synced", successCount,
		"errors", errorCount)
	return nil
}

// Close cancels pending summary refreshes and waits for running ones.
func (w *SyncWorker) Close() {
	w.debounce.Close()
}

// summaryYear is the accounting year a transaction counts toward.
func summaryYear(tx core.Transaction) int {
	_, year := fiscal.PeriodOf(tx.Date)
	return year
}
