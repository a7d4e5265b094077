// Package fiscal resolves accounting-month windows. An accounting month M of
// year Y runs from the 13th of month M-1 to the 12th of month M, both days
// included. January's window starts on 13 December of the previous year.
package fiscal

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"familyledger/internal/months"
)

const (
	StartDay = 13
	EndDay   = 12
)

var (
	ErrInvalidOrdinal = errors.New("month ordinal must be between 1 and 12")
	ErrUnknownMonth   = errors.New("unknown month label")
	ErrSameOrInverted = errors.New("start date must be before end date")
	ErrMissingDate    = errors.New("start and end dates are required")
)

// Window is an inclusive date range.
type Window struct {
	Start civil.Date `json:"start"`
	End   civil.Date `json:"end"`
}

// Contains reports whether d lies inside w, bounds included.
func (w Window) Contains(d civil.Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	return w.Start.String() + ".." + w.End.String()
}

// LabeledWindow is one accounting month of a yearly sweep. Year is the
// bucket the window belongs to, even when Start falls in the year before.
type LabeledWindow struct {
	Label   string
	Ordinal int
	Year    int
	Window  Window
}

// ResolveWindow returns the accounting window for a 1-based month of a
// calendar year.
func ResolveWindow(ordinal, year int) (Window, error) {
	if ordinal < 1 || ordinal > 12 {
		return Window{}, fmt.Errorf("%w: %d", ErrInvalidOrdinal, ordinal)
	}
	end := civil.Date{Year: year, Month: time.Month(ordinal), Day: EndDay}
	start := civil.Date{Year: year, Month: time.Month(ordinal - 1), Day: StartDay}
	if ordinal == 1 {
		start = civil.Date{Year: year - 1, Month: time.December, Day: StartDay}
	}
	return Window{Start: start, End: end}, nil
}

// WindowForLabel resolves the window for a month picked by its label.
func WindowForLabel(label string, year int) (Window, error) {
	ordinal, ok := months.NameToOrdinal(label)
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrUnknownMonth, label)
	}
	return ResolveWindow(ordinal, year)
}

// WindowForIndex resolves the window for a month picked by its zero-based
// position in the selector. It agrees with WindowForLabel for the same month.
func WindowForIndex(index, year int) (Window, error) {
	return ResolveWindow(index+1, year)
}

// YearWindows returns the twelve accounting months of a calendar year in
// order.
func YearWindows(year int) []LabeledWindow {
	out := make([]LabeledWindow, 0, 12)
	for ordinal := 1; ordinal <= 12; ordinal++ {
		w, _ := ResolveWindow(ordinal, year)
		label, _ := months.OrdinalToName(ordinal)
		out = append(out, LabeledWindow{Label: label, Ordinal: ordinal, Year: year, Window: w})
	}
	return out
}

// YearSpan covers every accounting month of a year: 13 December of the
// previous year to 12 December.
func YearSpan(year int) Window {
	first, _ := ResolveWindow(1, year)
	last, _ := ResolveWindow(12, year)
	return Window{Start: first.Start, End: last.End}
}

// ValidateRange accepts only strictly ordered dates.
func ValidateRange(start, end civil.Date) error {
	if start == (civil.Date{}) || end == (civil.Date{}) {
		return ErrMissingDate
	}
	if !start.Before(end) {
		return ErrSameOrInverted
	}
	return nil
}

// NewWindow validates and builds a search window.
func NewWindow(start, end civil.Date) (Window, error) {
	if err := ValidateRange(start, end); err != nil {
		return Window{}, err
	}
	return Window{Start: start, End: end}, nil
}

// PeriodOf returns the accounting month that contains d. Days from the 13th
// onward belong to the next month, so 13 December falls in January of the
// following year.
func PeriodOf(d civil.Date) (ordinal, year int) {
	ordinal, year = int(d.Month), d.Year
	if d.Day >= StartDay {
		ordinal++
		if ordinal > 12 {
			ordinal, year = 1, year+1
		}
	}
	return ordinal, year
}
