package contact

import "time"

// Upcoming returns the contacts whose birthday falls inside
// [today, today+days]. The comparison uses only month and day: a Feb-29
// birthday collapses to Feb-28 in non-leap years, and when the window crosses
// a year boundary the next year's occurrence is checked as well. Each contact
// appears at most once.
func Upcoming(today time.Time, days int, contacts []Contact) []Contact {
	today = truncateToDate(today)
	end := today.AddDate(0, 0, days)

	upcoming := make([]Contact, 0)
	for _, c := range contacts {
		occurrence := birthdayInYear(c.Birthday, today.Year(), today.Location())
		if inWindow(occurrence, today, end) {
			upcoming = append(upcoming, c)
			continue
		}

		if end.Year() != today.Year() {
			occurrence = birthdayInYear(c.Birthday, end.Year(), today.Location())
			if inWindow(occurrence, today, end) {
				upcoming = append(upcoming, c)
			}
		}
	}

	return upcoming
}

// birthdayInYear projects a birth date onto the given year.
func birthdayInYear(birthday time.Time, year int, loc *time.Location) time.Time {
	month, day := birthday.Month(), birthday.Day()
	if month == time.February && day == 29 && !isLeapYear(year) {
		day = 28
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func inWindow(date, start, end time.Time) bool {
	return !date.Before(start) && !date.After(end)
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
