// Package core provides the ledger's value types.
//
// This file contains the amount type. Amounts are kept in the textual form
// the store delivered them in, because legacy records carry values such as
// "1,200" next to plain numbers.
package core

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a non-negative transaction magnitude. Direction lives on the
// transaction's Inflow flag, never in the sign.
type Amount string

// NewAmount formats d as an Amount.
func NewAmount(d decimal.Decimal) Amount {
	return Amount(d.String())
}

// ParseAmount strictly parses an amount for writing.
//
// Thousands separators, spaces and a leading baht sign are accepted and
// stripped. Empty, negative or otherwise malformed input is rejected.
//
// Examples:
//
//	ParseAmount("1,200")    -> 1200, nil
//	ParseAmount(" 12.50 ")  -> 12.5, nil
//	ParseAmount("฿300")     -> 300, nil
//	ParseAmount("-1")       -> 0, ErrInvalidAmount
func ParseAmount(s string) (decimal.Decimal, error) {
	s = normalizeAmount(s)
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func normalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "฿")
	return strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || r == '\u00a0' {
			return -1
		}
		return r
	}, s)
}

// Decimal returns the numeric value, parsing text first and only falling
// back to zero when the value cannot be parsed at all.
func (a Amount) Decimal() decimal.Decimal {
	s := normalizeAmount(string(a))
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// MarshalJSON emits parseable amounts as JSON numbers and anything else as
// the original string.
func (a Amount) MarshalJSON() ([]byte, error) {
	if d, err := decimal.NewFromString(normalizeAmount(string(a))); err == nil {
		return []byte(d.String()), nil
	}
	return json.Marshal(string(a))
}

// UnmarshalJSON accepts both numbers and strings.
func (a *Amount) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	if string(b) == "null" {
		*a = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = Amount(n.String())
	return nil
}

// Scan implements sql.Scanner for text, integer and real columns.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = ""
	case string:
		*a = Amount(v)
	case []byte:
		*a = Amount(string(v))
	case int64:
		*a = Amount(strconv.FormatInt(v, 10))
	case float64:
		*a = Amount(strconv.FormatFloat(v, 'f', -1, 64))
	default:
		return fmt.Errorf("amount: unsupported column type %T", src)
	}
	return nil
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) {
	return string(a), nil
}
