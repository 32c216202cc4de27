package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func TestNextPaymentDate(t *testing.T) {
	cases := []struct {
		name       string
		start      time.Time
		cycle      BillingCycle
		billingDay int
		want       time.Time
	}{
		{"monthly clamps to leap february", date(2024, 1, 31), BillingCycleMonthly, 31, date(2024, 2, 29)},
		{"monthly clamps to short february", date(2023, 1, 31), BillingCycleMonthly, 31, date(2023, 2, 28)},
		{"monthly uses billing day", date(2024, 3, 15), BillingCycleMonthly, 5, date(2024, 4, 5)},
		{"monthly wraps year", date(2024, 12, 10), BillingCycleMonthly, 1, date(2025, 1, 1)},
		{"quarterly wraps year", date(2024, 11, 20), BillingCycleQuarterly, 30, date(2025, 2, 28)},
		{"quarterly keeps day", date(2024, 1, 15), BillingCycleQuarterly, 15, date(2024, 4, 15)},
		{"yearly keeps date", date(2024, 1, 31), BillingCycleYearly, 31, date(2025, 1, 31)},
		{"yearly leap day to non leap", date(2024, 2, 29), BillingCycleYearly, 1, date(2025, 2, 28)},
		{"yearly feb 28 into leap year stays feb 28", date(2027, 2, 28), BillingCycleYearly, 28, date(2028, 2, 28)},
		{"yearly leap day always lands on feb 28 next year", date(2028, 2, 29), BillingCycleYearly, 29, date(2029, 2, 28)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NextPaymentDate(tc.start, tc.cycle, tc.billingDay)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}
}

func TestNextPaymentDateKeepsTimeOfDay(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	start := time.Date(2024, 5, 10, 8, 30, 0, 0, loc)

	got, err := NextPaymentDate(start, BillingCycleMonthly, 10)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 10, 8, 30, 0, 0, loc), got)
}

func TestNextPaymentDateRejectsUnknownCycle(t *testing.T) {
	_, err := NextPaymentDate(date(2024, 1, 1), BillingCycle("weekly"), 1)
	assert.ErrorIs(t, err, ErrInvalidBillingCycle)
}

func TestCalendarHelpers(t *testing.T) {
	assert.True(t, IsLeap(2000))
	assert.False(t, IsLeap(1900))
	assert.True(t, IsLeap(2024))
	assert.False(t, IsLeap(2025))
	assert.Equal(t, 29, DaysIn(2024, time.February))
	assert.Equal(t, 31, DaysIn(2024, time.December))
	assert.True(t, ValidBillingDay(31))
	assert.False(t, ValidBillingDay(0))
	assert.False(t, ValidBillingDay(32))
}
