// Package calendar provides the pure date helpers used by the leave engine:
// inclusive day counting with optional weekend exclusion, and whole-year
// offsets with a fixed Feb-29 anniversary policy.
package calendar

import "time"

// CountDays returns the inclusive number of days between start and end.
// When excludeWeekends is true, Saturdays and Sundays are not counted.
// An end before start yields 0; validating the range is the caller's job.
func CountDays(start, end time.Time, excludeWeekends bool) int {
	start = truncate(start)
	end = truncate(end)

	total := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if excludeWeekends {
			wd := d.Weekday()
			if wd == time.Saturday || wd == time.Sunday {
				continue
			}
		}
		total++
	}
	return total
}

// AddYears adds n whole years to d. When the source date is Feb 29 and the
// target year has no Feb 29, the result falls back to Feb 28 of that year
// (time.AddDate would normalize to Mar 1 instead).
func AddYears(d time.Time, n int) time.Time {
	year := d.Year() + n
	month := d.Month()
	day := d.Day()

	if month == time.February && day == 29 && !isLeapYear(year) {
		day = 28
	}

	return time.Date(year, month, day, d.Hour(), d.Minute(), d.Second(), d.Nanosecond(), d.Location())
}

func truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
