package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"familyledger/internal/core"
	"familyledger/internal/fiscal"
	"familyledger/internal/repository"

	_ "modernc.org/sqlite"
)

// Fixed-width so that text order is chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Sync states of a transaction row.
const (
	SyncPending = "pending"
	SyncDone    = "synced"
	SyncError   = "error"
)

type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

var _ repository.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		// rows written before the fixed-width layout
		if t, err = time.Parse(time.RFC3339Nano, s); err != nil {
			return time.Time{}
		}
	}
	return t
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}

func affected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Transactions

const txColumns = `id, domain, date, amount, details, remark, inflow, created_at, modified_at, version`

func scanTransaction(s rowScanner) (core.Transaction, error) {
	var (
		tx                core.Transaction
		domain, date      string
		created, modified string
		inflow            int64
	)
	if err := s.Scan(&tx.ID, &domain, &date, &tx.Amount, &tx.Details, &tx.Remark, &inflow, &created, &modified, &tx.Version); err != nil {
		return core.Transaction{}, err
	}
	d, err := civil.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: bad date %q: %w", tx.ID, date, err)
	}
	tx.Domain = core.Domain(domain)
	tx.Date = d
	tx.Inflow = inflow != 0
	tx.CreatedAt = parseTime(created)
	tx.ModifiedAt = parseTime(modified)
	return tx, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	now := r.now()
	tx.ID = uuid.NewString()
	tx.CreatedAt, tx.ModifiedAt = now, now
	tx.Version = 1

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+txColumns+`, sync_status) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, string(tx.Domain), tx.Date.String(), string(tx.Amount), tx.Details, tx.Remark,
		boolInt(tx.Inflow), formatTime(now), formatTime(now), tx.Version, SyncPending)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}

	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", tx.ID,
		"domain", tx.Domain,
		"date", tx.Date.String())
	return tx, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error) {
	old, err := r.GetTransaction(ctx, tx.Domain, tx.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	tx.CreatedAt = old.CreatedAt
	tx.ModifiedAt = r.now()
	tx.Version = old.Version + 1

	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions
		    SET date = ?, amount = ?, details = ?, remark = ?, inflow = ?, modified_at = ?, version = ?, sync_status = ?
		  WHERE id = ? AND domain = ?`,
		tx.Date.String(), string(tx.Amount), tx.Details, tx.Remark, boolInt(tx.Inflow),
		formatTime(tx.ModifiedAt), tx.Version, SyncPending, tx.ID, string(tx.Domain))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}
	if err := affected(res); err != nil {
		return core.Transaction{}, err
	}
	return tx, nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, domain core.Domain, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND domain = ?`, id, string(domain))
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, domain core.Domain, id string) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = ? AND domain = ?`, id, string(domain))
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFound(err)
	}
	return tx, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, domain core.Domain) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE domain = ?
		  ORDER BY date DESC, created_at DESC, id DESC`, string(domain))
}

// QueryByDateRange builds one SELECT from q. Dates are ISO text, so the
// inclusive window is a plain string range.
func (r *SQLiteRepository) QueryByDateRange(ctx context.Context, q repository.Query) ([]core.Transaction, error) {
	var (
		where = []string{"domain = ?", "date >= ?", "date <= ?"}
		args  = []any{string(q.Domain), q.Window.Start.String(), q.Window.End.String()}
	)
	if q.Inflow != nil {
		where = append(where, "inflow = ?")
		args = append(args, boolInt(*q.Inflow))
	}
	if q.Details != "" {
		where = append(where, "details = ?")
		args = append(args, q.Details)
	}
	if q.DetailsPrefix != "" {
		where = append(where, "details >= ?", "details <= ?")
		args = append(args, q.DetailsPrefix, q.DetailsPrefix+repository.PrefixUpperBound)
	}
	dir := "ASC"
	if q.Order == repository.Descending {
		dir = "DESC"
	}
	query := `SELECT ` + txColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY date ` + dir + `, created_at ` + dir + `, id ` + dir
	return r.queryTransactions(ctx, query, args...)
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	out := make([]core.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// PendingSync lists transaction keys not yet mirrored, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]core.Transaction, error) {
	return r.queryTransactions(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE sync_status != ?
		  ORDER BY modified_at ASC LIMIT ?`, SyncDone, limit)
}

// MarkSynced records that version of a transaction has been mirrored. A
// newer write in the meantime keeps the row pending.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, version int64) error {
	return r.setSyncStatus(ctx, id, version, SyncDone)
}

func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id string, version int64) error {
	if err := r.setSyncStatus(ctx, id, version, SyncError); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Transaction marked with sync error", "id", id, "version", version)
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, id string, version int64, status string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET sync_status = ? WHERE id = ? AND version = ?`, status, id, version)
	if err != nil {
		return fmt.Errorf("set sync status: %w", err)
	}
	return nil
}

// Periods

const periodColumns = `id, month, year, period_start, period_end, created_at, modified_at`

func scanPeriod(s rowScanner) (core.Period, error) {
	var (
		p                 core.Period
		start, end        string
		created, modified string
	)
	if err := s.Scan(&p.ID, &p.Month, &p.Year, &start, &end, &created, &modified); err != nil {
		return core.Period{}, err
	}
	var err error
	if p.Start, err = civil.ParseDate(start); err != nil {
		return core.Period{}, fmt.Errorf("period %s: bad start %q: %w", p.ID, start, err)
	}
	if p.End, err = civil.ParseDate(end); err != nil {
		return core.Period{}, fmt.Errorf("period %s: bad end %q: %w", p.ID, end, err)
	}
	p.CreatedAt = parseTime(created)
	p.ModifiedAt = parseTime(modified)
	return p, nil
}

func (r *SQLiteRepository) CreatePeriod(ctx context.Context, p core.Period) (core.Period, error) {
	now := r.now()
	p.ID = uuid.NewString()
	p.CreatedAt, p.ModifiedAt = now, now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO periods (`+periodColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Month, p.Year, p.Start.String(), p.End.String(), formatTime(now), formatTime(now))
	if err != nil {
		return core.Period{}, fmt.Errorf("create period: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) UpdatePeriod(ctx context.Context, p core.Period) (core.Period, error) {
	old, err := r.GetPeriod(ctx, p.ID)
	if err != nil {
		return core.Period{}, err
	}
	p.CreatedAt = old.CreatedAt
	p.ModifiedAt = r.now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE periods SET month = ?, year = ?, period_start = ?, period_end = ?, modified_at = ? WHERE id = ?`,
		p.Month, p.Year, p.Start.String(), p.End.String(), formatTime(p.ModifiedAt), p.ID)
	if err != nil {
		return core.Period{}, fmt.Errorf("update period: %w", err)
	}
	if err := affected(res); err != nil {
		return core.Period{}, err
	}
	return p, nil
}

func (r *SQLiteRepository) DeletePeriod(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM periods WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete period: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepository) GetPeriod(ctx context.Context, id string) (core.Period, error) {
	p, err := scanPeriod(r.db.QueryRowContext(ctx, `SELECT `+periodColumns+` FROM periods WHERE id = ?`, id))
	if err != nil {
		return core.Period{}, notFound(err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPeriods(ctx context.Context) ([]core.Period, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+periodColumns+` FROM periods ORDER BY period_start DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query periods: %w", err)
	}
	defer rows.Close()

	out := make([]core.Period, 0)
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate periods: %w", err)
	}
	return out, nil
}

// Blood pressure

const bloodColumns = `id, date, morning, evening, remark, created_at, modified_at`

func scanBloodPressure(s rowScanner) (core.BloodPressure, error) {
	var (
		b                 core.BloodPressure
		date              string
		morning, evening  string
		created, modified string
	)
	if err := s.Scan(&b.ID, &date, &morning, &evening, &b.Remark, &created, &modified); err != nil {
		return core.BloodPressure{}, err
	}
	d, err := civil.ParseDate(date)
	if err != nil {
		return core.BloodPressure{}, fmt.Errorf("blood pressure %s: bad date %q: %w", b.ID, date, err)
	}
	b.Date = d
	// Unreadable stored readings surface as zero values rather than failing the list.
	b.Morning, _ = core.ParseReading(morning)
	b.Evening, _ = core.ParseReading(evening)
	b.CreatedAt = parseTime(created)
	b.ModifiedAt = parseTime(modified)
	return b, nil
}

func (r *SQLiteRepository) CreateBloodPressure(ctx context.Context, b core.BloodPressure) (core.BloodPressure, error) {
	now := r.now()
	b.ID = uuid.NewString()
	b.CreatedAt, b.ModifiedAt = now, now
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO blood_pressure (`+bloodColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.Date.String(), b.Morning.String(), b.Evening.String(), b.Remark, formatTime(now), formatTime(now))
	if err != nil {
		return core.BloodPressure{}, fmt.Errorf("create blood pressure: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) UpdateBloodPressure(ctx context.Context, b core.BloodPressure) (core.BloodPressure, error) {
	old, err := r.GetBloodPressure(ctx, b.ID)
	if err != nil {
		return core.BloodPressure{}, err
	}
	b.CreatedAt = old.CreatedAt
	b.ModifiedAt = r.now()
	res, err := r.db.ExecContext(ctx,
		`UPDATE blood_pressure SET date = ?, morning = ?, evening = ?, remark = ?, modified_at = ? WHERE id = ?`,
		b.Date.String(), b.Morning.String(), b.Evening.String(), b.Remark, formatTime(b.ModifiedAt), b.ID)
	if err != nil {
		return core.BloodPressure{}, fmt.Errorf("update blood pressure: %w", err)
	}
	if err := affected(res); err != nil {
		return core.BloodPressure{}, err
	}
	return b, nil
}

func (r *SQLiteRepository) DeleteBloodPressure(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM blood_pressure WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete blood pressure: %w", err)
	}
	return affected(res)
}

func (r *SQLiteRepository) GetBloodPressure(ctx context.Context, id string) (core.BloodPressure, error) {
	b, err := scanBloodPressure(r.db.QueryRowContext(ctx, `SELECT `+bloodColumns+` FROM blood_pressure WHERE id = ?`, id))
	if err != nil {
		return core.BloodPressure{}, notFound(err)
	}
	return b, nil
}

func (r *SQLiteRepository) ListBloodPressure(ctx context.Context) ([]core.BloodPressure, error) {
	return r.queryBloodPressure(ctx, `SELECT `+bloodColumns+` FROM blood_pressure ORDER BY date DESC, id ASC`)
}

func (r *SQLiteRepository) BloodPressureByDateRange(ctx context.Context, w fiscal.Window) ([]core.BloodPressure, error) {
	return r.queryBloodPressure(ctx,
		`SELECT `+bloodColumns+` FROM blood_pressure WHERE date >= ? AND date <= ? ORDER BY date DESC, id ASC`,
		w.Start.String(), w.End.String())
}

func (r *SQLiteRepository) queryBloodPressure(ctx context.Context, query string, args ...any) ([]core.BloodPressure, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query blood pressure: %w", err)
	}
	defer rows.Close()

	out := make([]core.BloodPressure, 0)
	for rows.Next() {
		b, err := scanBloodPressure(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blood pressure: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blood pressure: %w", err)
	}
	return out, nil
}
