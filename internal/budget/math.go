// Package budget implements the budget arithmetic, the onboarding and purchase
// conversation, and the commands that query or mutate a user's record.
package budget

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Proton-105/budget-bot/internal/domain"
)

const day = 24 * time.Hour

// MoneyPlaces is the number of decimal places used when rendering amounts.
const MoneyPlaces = 2

// zone returns a fixed location for a UTC offset expressed in hours.
func zone(offsetHours float64) *time.Location {
	return time.FixedZone("", int(math.Round(offsetHours*3600)))
}

// LocalNow returns now as seen in the user's offset. It is only used for
// calendar boundaries and is never persisted.
func LocalNow(offsetHours float64, now time.Time) time.Time {
	return now.In(zone(offsetHours))
}

// localDate truncates t to its calendar date in the given offset.
// The result is expressed in UTC so date differences are whole days.
func localDate(t time.Time, offsetHours float64) time.Time {
	local := LocalNow(offsetHours, t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysElapsed counts local calendar-day boundaries crossed between startDate and now.
// A now before startDate yields 0.
func DaysElapsed(startDate time.Time, offsetHours float64, now time.Time) int {
	elapsed := localDate(now, offsetHours).Sub(localDate(startDate, offsetHours))
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / day)
}

// RemainingDays never drops below 1 so a daily figure is always reported,
// even past the planned end of the period.
func RemainingDays(totalDays, daysElapsed int) int {
	return max(totalDays-daysElapsed, 1)
}

// DailyBudget divides the balance across the remaining days.
// remainingDays must come from RemainingDays.
func DailyBudget(totalAmount decimal.Decimal, remainingDays int) decimal.Decimal {
	return totalAmount.Div(decimal.NewFromInt(int64(max(remainingDays, 1))))
}

// ProjectedNextPeriodBudget is tomorrow's daily budget if nothing more is
// spent today. It is absent when only one day remains.
func ProjectedNextPeriodBudget(totalAmount decimal.Decimal, remainingDays int) (decimal.Decimal, bool) {
	if remainingDays <= 1 {
		return decimal.Zero, false
	}
	return totalAmount.Div(decimal.NewFromInt(int64(max(remainingDays-1, 1)))), true
}

// TimeUntilNextLocalMidnight returns whole hours and remaining whole minutes
// until the next calendar day starts in the user's offset.
func TimeUntilNextLocalMidnight(offsetHours float64, now time.Time) (hours, minutes int) {
	local := LocalNow(offsetHours, now)
	midnight := time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, local.Location())

	left := midnight.Sub(local)
	return int(left / time.Hour), int((left % time.Hour) / time.Minute)
}

// Projection bundles the figures reported after a purchase and by status.
type Projection struct {
	Balance       decimal.Decimal
	DaysElapsed   int
	RemainingDays int
	DailyBudget   decimal.Decimal
	NextPeriod    decimal.Decimal
	HasNextPeriod bool
}

// Project computes the budget figures for rec at now.
func Project(rec *domain.Record, now time.Time) Projection {
	elapsed := DaysElapsed(rec.StartDate, rec.TimezoneOffset, now)
	remaining := RemainingDays(rec.Days, elapsed)
	next, ok := ProjectedNextPeriodBudget(rec.TotalAmount, remaining)

	return Projection{
		Balance:       rec.TotalAmount,
		DaysElapsed:   elapsed,
		RemainingDays: remaining,
		DailyBudget:   DailyBudget(rec.TotalAmount, remaining),
		NextPeriod:    next,
		HasNextPeriod: ok,
	}
}

// FormatMoney renders an amount with two decimal places.
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(MoneyPlaces)
}
