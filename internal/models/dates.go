package models

import "time"

// Day normalizes a timestamp to midnight UTC so dates compare by calendar
// day regardless of the clock component.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DatesBetween returns every date in the half-open range
// [startInclusive, endExclusive) in ascending order.
// An empty slice is returned when startInclusive >= endExclusive.
//
// Example: DatesBetween(2022-10-22, 2022-10-25) returns
// 2022-10-22, 2022-10-23, 2022-10-24.
func DatesBetween(startInclusive, endExclusive time.Time) []time.Time {
	start := Day(startInclusive)
	end := Day(endExclusive)

	dates := make([]time.Time, 0)
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

// DaysBetween returns the number of whole days from a to b.
// Negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}
