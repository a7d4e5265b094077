package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
)

const (
	Accounts Domain = "accounts"
	Credit   Domain = "credit"
)

type (
	// Domain names the ledger a transaction belongs to.
	Domain string

	Transaction struct {
		ID         string
		Domain     Domain
		Date       civil.Date
		Amount     Amount
		Details    string
		Remark     string
		Inflow     bool // isInCome for accounts, isCashback for credit
		CreatedAt  time.Time
		ModifiedAt time.Time
		Version    int64
	}

	// Period is a stored accounting month. Start and End are kept explicitly
	// because a period can be adjusted by hand after creation.
	Period struct {
		ID         string
		Month      string // localized month label
		Year       int    // calendar year, not the display year
		Start      civil.Date
		End        civil.Date
		CreatedAt  time.Time
		ModifiedAt time.Time
	}

	// Selection is the value behind a month or year selector.
	Selection struct {
		Label string `json:"label"`
		Value int    `json:"value"`
	}
)

var (
	ErrInvalidDomain  = errors.New("invalid domain")
	ErrMissingDate    = errors.New("date is required")
	ErrEmptyDetails   = errors.New("empty details")
	ErrDetailsTooLong = errors.New("details too long (max 200 characters)")
	ErrRemarkTooLong  = errors.New("remark too long (max 500 characters)")
	ErrEmptyMonth     = errors.New("empty month label")
	ErrInvalidYear    = errors.New("invalid year")
	ErrInvalidPeriod  = errors.New("period start must be before period end")
)

func ParseDomain(s string) (Domain, error) {
	d := Domain(strings.ToLower(strings.TrimSpace(s)))
	if !d.IsValid() {
		return "", ErrInvalidDomain
	}
	return d, nil
}

func (d Domain) IsValid() bool {
	switch d {
	case Accounts, Credit:
		return true
	default:
		return false
	}
}

func (d Domain) String() string {
	return string(d)
}

// InflowField returns the name the direction flag carries in this domain.
func (d Domain) InflowField() string {
	if d == Credit {
		return "isCashback"
	}
	return "isInCome"
}

// DateIsSet reports whether d holds a real calendar date.
func DateIsSet(d civil.Date) bool {
	return d != (civil.Date{}) && d.IsValid()
}

func (t Transaction) Validate() error {
	if !t.Domain.IsValid() {
		return ErrInvalidDomain
	}
	if !DateIsSet(t.Date) {
		return ErrMissingDate
	}
	if len(strings.TrimSpace(t.Details)) == 0 {
		return ErrEmptyDetails
	}
	if utf8.RuneCountInString(t.Details) > 200 {
		return ErrDetailsTooLong
	}
	if utf8.RuneCountInString(t.Remark) > 500 {
		return ErrRemarkTooLong
	}
	if _, err := ParseAmount(string(t.Amount)); err != nil {
		return err
	}
	return nil
}

func (p Period) Validate() error {
	if strings.TrimSpace(p.Month) == "" {
		return ErrEmptyMonth
	}
	if p.Year < 1900 || p.Year > 9999 {
		return ErrInvalidYear
	}
	if !DateIsSet(p.Start) || !DateIsSet(p.End) {
		return ErrMissingDate
	}
	if !p.Start.Before(p.End) {
		return ErrInvalidPeriod
	}
	return nil
}
