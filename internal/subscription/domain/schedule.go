package domain

import "time"

const (
	MinBillingDay = 1
	MaxBillingDay = 31
)

// NextPaymentDate returns the first payment date after start for the given cycle.
// Monthly and quarterly dates land on billingDay, clamped to the target month's
// last day. Yearly dates keep start's month and day; Feb 29 falls back to Feb 28
// outside leap years. Time of day and location follow start.
func NextPaymentDate(start time.Time, cycle BillingCycle, billingDay int) (time.Time, error) {
	switch cycle {
	case BillingCycleMonthly:
		return onBillingDay(start, 1, billingDay), nil
	case BillingCycleQuarterly:
		return onBillingDay(start, 3, billingDay), nil
	case BillingCycleYearly:
		year := start.Year() + 1
		day := start.Day()
		if start.Month() == time.February && day == 29 && !IsLeap(year) {
			day = 28
		}
		return time.Date(year, start.Month(), day, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location()), nil
	default:
		return time.Time{}, ErrInvalidBillingCycle
	}
}

func onBillingDay(start time.Time, months int, billingDay int) time.Time {
	year, month := addMonths(start.Year(), start.Month(), months)
	day := min(billingDay, DaysIn(year, month))
	return time.Date(year, month, day, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	idx := int(month) - 1 + n
	year += idx / 12
	return year, time.Month(idx%12 + 1)
}

// DaysIn reports the number of days in month of year.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func ValidBillingDay(day int) bool {
	return day >= MinBillingDay && day <= MaxBillingDay
}
