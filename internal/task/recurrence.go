package task

import "time"

// NextDueDate computes the next occurrence of a recurrence rule after from.
// It is pure and deterministic. EndDate is deliberately not consulted here:
// suppressing occurrences past the end date is the caller's boundary policy.
//
// Monthly rules clamp to the last day of the target month when DayOfMonth
// overflows it (day 31 in February yields Feb 28/29, not a March date).
func NextDueDate(rule RecurrenceRule, from time.Time) time.Time {
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	switch rule.Frequency {
	case FreqDaily:
		return from.AddDate(0, 0, interval)

	case FreqWeekly:
		if len(rule.DaysOfWeek) == 0 {
			// Plain weekly cadence, weekday selection ignored.
			return from.AddDate(0, 0, 7*interval)
		}
		return from.AddDate(0, 0, daysUntilNextWeekday(int(from.Weekday()), rule.DaysOfWeek))

	case FreqMonthly:
		day := rule.DayOfMonth
		if day < 1 {
			day = from.Day()
		}
		year, month, _ := from.Date()
		target := time.Date(year, month+time.Month(interval), 1,
			from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
		if last := lastDayOfMonth(target); day > last {
			day = last
		}
		return target.AddDate(0, 0, day-1)
	}

	return from
}

// daysUntilNextWeekday returns the day delta from the current weekday to the
// smallest selected weekday strictly after it, wrapping to the smallest
// selected weekday next week when none remains this week.
func daysUntilNextWeekday(current int, selected []int) int {
	next := -1
	smallest := selected[0]
	for _, d := range selected {
		if d < smallest {
			smallest = d
		}
		if d > current && (next == -1 || d < next) {
			next = d
		}
	}
	if next != -1 {
		return next - current
	}
	return 7 - current + smallest
}

func lastDayOfMonth(t time.Time) int {
	firstOfNext := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	return firstOfNext.AddDate(0, 0, -1).Day()
}

// Expired reports whether a rule's end date has passed as of now.
// Rules without an end date never expire.
func (r RecurrenceRule) Expired(now time.Time) bool {
	return r.EndDate != nil && now.After(*r.EndDate)
}
