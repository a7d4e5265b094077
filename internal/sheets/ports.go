package sheets

import (
	"context"

	"familyledger/internal/report"
)

// Ports for outbound adapters.
type (
	// RecordMirror keeps one row per record, keyed by the record ID in the
	// first column. Upsert replaces an existing row or appends a new one.
	// Remove of an unknown ID is not an error.
	RecordMirror interface {
		Upsert(ctx context.Context, sheet, id string, row []any) error
		Remove(ctx context.Context, sheet, id string) error
	}

	// SummaryWriter replaces the year summary sheet with a fresh rendering.
	SummaryWriter interface {
		WriteYearSummary(ctx context.Context, summary report.YearSummary) error
	}

	Mirror interface {
		RecordMirror
		SummaryWriter
	}
)
