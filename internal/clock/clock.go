// Package clock provides the time source and date arithmetic used by the
// subscription and invite lifecycles.
package clock

import "time"

const msPerDay = 24 * time.Hour

// Clock abstracts time.Now so lifecycle decisions stay testable.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}

// DaysUntil returns the number of whole days from now until t, rounded up.
// A deadline later today counts as 0 or more; a deadline in the past is
// negative.
func DaysUntil(now, t time.Time) int {
	diff := t.Sub(now)
	days := diff / msPerDay
	if diff%msPerDay > 0 {
		days++
	}
	return int(days)
}

// AddMonths advances t by the given number of calendar months.
func AddMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}

// AddYears advances t by the given number of calendar years.
func AddYears(t time.Time, years int) time.Time {
	return t.AddDate(years, 0, 0)
}

// AddDays advances t by the given number of days.
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}
