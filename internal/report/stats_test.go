package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"familyledger/internal/core"
)

func TestStatsFirstOccurrenceWins(t *testing.T) {
	s := Stats([]LabeledAmount{
		{Label: "Jan", Amount: dec(1000)},
		{Label: "Feb", Amount: dec(500)},
		{Label: "Mar", Amount: dec(1000)},
		{Label: "Apr", Amount: dec(200)},
	})
	assertDec(t, 1000, s.Max)
	assert.Equal(t, "Jan", s.MaxLabel)
	assertDec(t, 200, s.Min)
	assert.Equal(t, "Apr", s.MinLabel)
	assertDec(t, 675, s.Average)
	assert.Equal(t, 4, s.Count)
}

func TestStatsZeroMonthsCountTowardAverage(t *testing.T) {
	s := Stats([]LabeledAmount{
		{Label: "Jan", Amount: dec(0)},
		{Label: "Feb", Amount: dec(300)},
		{Label: "Mar", Amount: dec(0)},
	})
	assertDec(t, 100, s.Average)
	assert.Equal(t, "Jan", s.MinLabel)
}

func TestStatsEmpty(t *testing.T) {
	s := Stats(nil)
	assert.True(t, s.Average.IsZero())
	assert.True(t, s.Max.IsZero())
	assert.Empty(t, s.MaxLabel)
	assert.Empty(t, s.MinLabel)
	assert.Zero(t, s.Count)
}

func TestCreditYear(t *testing.T) {
	txs := []core.Transaction{
		// December of the previous year belongs to January's statement.
		{Domain: core.Credit, Date: date(2023, time.December, 15), Amount: "400"},
		{Domain: core.Credit, Date: date(2024, time.January, 12), Amount: "100"},
		{Domain: core.Credit, Date: date(2024, time.February, 1), Amount: "1,000"},
		{Domain: core.Credit, Date: date(2024, time.February, 2), Amount: "30", Inflow: true},
		{Domain: core.Credit, Date: date(2024, time.December, 13), Amount: "777"},
	}
	s := CreditYear(txs, 2024)
	require.Len(t, s.Months, 12)
	assert.Equal(t, "มกราคม", s.Months[0].Label)
	assertDec(t, 500, s.Months[0].Amount)
	assertDec(t, 1000, s.Months[1].Amount)
	assertDec(t, 1500, s.TotalExpense)
	assertDec(t, 30, s.TotalCashback)
	assert.Equal(t, "กุมภาพันธ์", s.Stats.MaxLabel)
	assert.Equal(t, "มีนาคม", s.Stats.MinLabel)
	assertDec(t, 125, s.Stats.Average)
}
