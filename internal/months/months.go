// Package months maps the localized month labels used by the ledger to
// ordinals and converts between calendar and display (Buddhist Era) years.
package months

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"familyledger/internal/core"
)

// BuddhistEraOffset is added to a calendar year to obtain the display year.
const BuddhistEraOffset = 543

var names = [12]string{
	"มกราคม",
	"กุมภาพันธ์",
	"มีนาคม",
	"เมษายน",
	"พฤษภาคม",
	"มิถุนายน",
	"กรกฎาคม",
	"สิงหาคม",
	"กันยายน",
	"ตุลาคม",
	"พฤศจิกายน",
	"ธันวาคม",
}

var ordinals = func() map[string]int {
	m := make(map[string]int, len(names))
	for i, n := range names {
		m[norm.NFC.String(n)] = i + 1
	}
	return m
}()

// NameToOrdinal returns the 1-based month for a label. Callers must check ok
// before using the result.
func NameToOrdinal(name string) (int, bool) {
	n, ok := ordinals[norm.NFC.String(strings.TrimSpace(name))]
	return n, ok
}

// OrdinalToName returns the label for a 1-based month.
func OrdinalToName(ordinal int) (string, bool) {
	if ordinal < 1 || ordinal > len(names) {
		return "", false
	}
	return names[ordinal-1], true
}

// Names returns the twelve labels in calendar order.
func Names() []string {
	out := make([]string, len(names))
	copy(out, names[:])
	return out
}

// CalendarYear converts a display year to a calendar year.
func CalendarYear(display int) int {
	return display - BuddhistEraOffset
}

// DisplayYear converts a calendar year to a display year.
func DisplayYear(calendar int) int {
	return calendar + BuddhistEraOffset
}

// MonthSelections lists the month selector options.
func MonthSelections() []core.Selection {
	out := make([]core.Selection, len(names))
	for i, n := range names {
		out[i] = core.Selection{Label: n, Value: i + 1}
	}
	return out
}

// YearSelections lists display years from five years before now to five
// years after it.
func YearSelections(now time.Time) []core.Selection {
	current := DisplayYear(now.Year())
	out := make([]core.Selection, 0, 11)
	for y := current - 5; y <= current+5; y++ {
		out = append(out, core.Selection{Label: strconv.Itoa(y), Value: y})
	}
	return out
}
