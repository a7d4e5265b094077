package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"familyledger/internal/cache"
	"familyledger/internal/report"
	ports "familyledger/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// Options configures the Sheets mirror. ClientOptions, when set, replace the
// service-account credentials.
type Options struct {
	SpreadsheetID   string
	CredentialsJSON string
	CredentialsFile string
	SummaryBase     string
	ClientOptions   []goption.ClientOption
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	summaryBase   string
	sheetIDs      *cache.LRU[string, int64]

	// Serializes find-then-write sequences on the same spreadsheet.
	mu sync.Mutex
}

var _ ports.Mirror = (*Client)(nil)

func New(ctx context.Context, opts Options) (*Client, error) {
	spreadsheetID := strings.TrimSpace(opts.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	base := strings.TrimSpace(opts.SummaryBase)
	if base == "" {
		base = ports.SummaryBase
	}
	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		summaryBase:   base,
		sheetIDs:      cache.NewLRU[string, int64](64, 10*time.Minute),
	}, nil
}

// newSheetsService initializes a Sheets service from service-account
// credentials: inline JSON first, then a file, then
// GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	if len(opts.ClientOptions) > 0 {
		return gsheet.NewService(ctx, opts.ClientOptions...)
	}

	inline := strings.TrimSpace(opts.CredentialsJSON)
	file := strings.TrimSpace(opts.CredentialsFile)
	if inline == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case inline != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(inline)
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// a1 quotes sheet for A1 notation.
func a1(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}

// Upsert writes id followed by row. An existing row with the same ID in
// column A is overwritten in place, otherwise a row is appended.
func (c *Client) Upsert(ctx context.Context, sheet, id string, row []any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.findRow(ctx, sheet, id)
	if err != nil {
		return err
	}
	vr := &gsheet.ValueRange{Values: [][]any{append([]any{id}, row...)}}

	if idx >= 0 {
		rng := a1(sheet, fmt.Sprintf("A%d", idx+1))
		if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
			ValueInputOption("RAW").Context(ctx).Do(); err != nil {
			return fmt.Errorf("update %s: %w", rng, err)
		}
		return nil
	}

	rng := a1(sheet, "A:A")
	if _, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do(); err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

// Remove deletes the row whose column A equals id.
func (c *Client) Remove(ctx context.Context, sheet, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx, err := c.findRow(ctx, sheet, id)
	if err != nil {
		return err
	}
	if idx < 0 {
		slog.DebugContext(ctx, "Row already absent from sheet", "sheet", sheet, "id", id)
		return nil
	}
	sheetID, ok, err := c.sheetID(ctx, sheet)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		DeleteDimension: &gsheet.DeleteDimensionRequest{Range: &gsheet.DimensionRange{
			SheetId:    sheetID,
			Dimension:  "ROWS",
			StartIndex: int64(idx),
			EndIndex:   int64(idx + 1),
		}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		c.sheetIDs.Delete(sheet)
		return fmt.Errorf("delete row %d of %s: %w", idx+1, sheet, err)
	}
	return nil
}

// WriteYearSummary clears "<year> Summary" and writes the summary table.
func (c *Client) WriteYearSummary(ctx context.Context, s report.YearSummary) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	name := ports.YearPrefixedName(c.summaryBase, s.Year)
	if err := c.ensureSheet(ctx, name); err != nil {
		return err
	}
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, a1(name, "A:Z"), &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", name, err)
	}
	vr := &gsheet.ValueRange{Values: ports.SummaryRows(s)}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, a1(name, "A1"), vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	slog.InfoContext(ctx, "Year summary written", "sheet", name, "months", len(s.Months))
	return nil
}

// findRow returns the zero-based row whose first cell is id, or -1.
func (c *Client) findRow(ctx context.Context, sheet, id string) (int, error) {
	rng := a1(sheet, "A:A")
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return -1, fmt.Errorf("read %s: %w", rng, err)
	}
	return indexOfID(resp.Values, id), nil
}

func indexOfID(values [][]any, id string) int {
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		if strings.TrimSpace(fmt.Sprint(row[0])) == id {
			return i
		}
	}
	return -1
}

// sheetID resolves a tab title. Found IDs are cached; misses are not.
func (c *Client) sheetID(ctx context.Context, title string) (int64, bool, error) {
	if id, ok := c.sheetIDs.Get(title); ok {
		return id, true, nil
	}
	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, false, fmt.Errorf("read spreadsheet: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == title {
			c.sheetIDs.Set(title, sh.Properties.SheetId)
			return sh.Properties.SheetId, true, nil
		}
	}
	return 0, false, nil
}

func (c *Client) ensureSheet(ctx context.Context, title string) error {
	_, ok, err := c.sheetID(ctx, title)
	if err != nil || ok {
		return err
	}
	req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
		AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: title}},
	}}}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("add sheet %s: %w", title, err)
	}
	return nil
}
