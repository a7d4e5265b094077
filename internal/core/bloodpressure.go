package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Blood pressure limits above which a reading is flagged.
const (
	HighSystolic  = 140
	HighDiastolic = 90
)

var ErrInvalidReading = errors.New("invalid blood pressure reading")

// Reading is one blood pressure measurement, written as "SYS/DIA Ppulse".
type Reading struct {
	Systolic  int `json:"systolic"`
	Diastolic int `json:"diastolic"`
	Pulse     int `json:"pulse"`
}

// BloodPressure holds the morning and evening readings of one day.
type BloodPressure struct {
	ID         string
	Date       civil.Date
	Morning    Reading
	Evening    Reading
	Remark     string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// ParseReading parses "120/80 P72". The pulse part is optional.
func ParseReading(s string) (Reading, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Reading{}, ErrInvalidReading
	}
	pressure, pulse, _ := strings.Cut(s, " ")
	sys, dia, ok := strings.Cut(pressure, "/")
	if !ok {
		return Reading{}, ErrInvalidReading
	}
	var r Reading
	var err error
	if r.Systolic, err = strconv.Atoi(strings.TrimSpace(sys)); err != nil {
		return Reading{}, ErrInvalidReading
	}
	if r.Diastolic, err = strconv.Atoi(strings.TrimSpace(dia)); err != nil {
		return Reading{}, ErrInvalidReading
	}
	pulse = strings.TrimSpace(pulse)
	if pulse != "" {
		pulse = strings.TrimPrefix(strings.TrimPrefix(pulse, "P"), "p")
		if r.Pulse, err = strconv.Atoi(strings.TrimSpace(pulse)); err != nil {
			return Reading{}, ErrInvalidReading
		}
	}
	if err := r.Validate(); err != nil {
		return Reading{}, err
	}
	return r, nil
}

func (r Reading) Validate() error {
	if r.Systolic <= 0 || r.Systolic > 300 {
		return ErrInvalidReading
	}
	if r.Diastolic <= 0 || r.Diastolic > 200 {
		return ErrInvalidReading
	}
	if r.Pulse < 0 || r.Pulse > 250 {
		return ErrInvalidReading
	}
	return nil
}

// IsHigh reports whether either pressure is above its limit.
func (r Reading) IsHigh() bool {
	return r.Systolic > HighSystolic || r.Diastolic > HighDiastolic
}

func (r Reading) String() string {
	if r.Pulse == 0 {
		return fmt.Sprintf("%d/%d", r.Systolic, r.Diastolic)
	}
	return fmt.Sprintf("%d/%d P%d", r.Systolic, r.Diastolic, r.Pulse)
}

func (b BloodPressure) Validate() error {
	if !DateIsSet(b.Date) {
		return ErrMissingDate
	}
	if err := b.Morning.Validate(); err != nil {
		return fmt.Errorf("morning: %w", err)
	}
	if err := b.Evening.Validate(); err != nil {
		return fmt.Errorf("evening: %w", err)
	}
	if len(b.Remark) > 500 {
		return ErrRemarkTooLong
	}
	return nil
}
