// Package schedule lays out installment due dates and turns them into
// year-fraction cash flows for discounting.
package schedule

import (
	"time"

	"cloud.google.com/go/civil"
)

// DaysInMonth returns the number of days in the calendar month containing d.
func DaysInMonth(d civil.Date) int {
	return daysIn(d.Year, d.Month)
}

func daysIn(year int, month time.Month) int {
	// day 0 of the following month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampedDueDay keeps the due day inside a month of the given length.
func ClampedDueDay(dueDay, daysInMonth int) int {
	return min(dueDay, daysInMonth)
}

// NextDueDate moves d forward one calendar month and puts it on dueDay,
// or on the month's last day when the month is shorter. It never rolls into
// the month after.
func NextDueDate(d civil.Date, dueDay int) civil.Date {
	year, month := d.Year, d.Month+1
	if month > time.December {
		year, month = year+1, time.January
	}
	return civil.Date{
		Year:  year,
		Month: month,
		Day:   ClampedDueDay(dueDay, daysIn(year, month)),
	}
}

// DayDifference is the number of whole calendar days from d1 to d2.
func DayDifference(d1, d2 civil.Date) int {
	return d2.DaysSince(d1)
}

// DayDifferenceTime is DayDifference for timestamps. Time of day is dropped,
// each value keeps the calendar date of its own location.
func DayDifferenceTime(t1, t2 time.Time) int {
	return DayDifference(civil.DateOf(t1), civil.DateOf(t2))
}
