package ledger

import "time"

// The academic session runs April 1 through March 31.
var monthNames = [12]string{
	"April", "May", "June", "July", "August", "September",
	"October", "November", "December", "January", "February", "March",
}

// AcademicIndex maps a calendar date to its 0-based offset within the
// academic session (April=0 ... March=11).
func AcademicIndex(t time.Time) int {
	m := int(t.Month()) - 1
	if m >= 3 {
		return m - 3
	}
	return m + 9
}

// IsNextCalendarYear reports whether the academic month falls in the calendar
// year after the session start (January through March).
func IsNextCalendarYear(index int) bool {
	return index >= 9
}

// MonthName returns the display name for an academic-month index.
func MonthName(index int) string {
	return monthNames[index]
}

// DisplayYear returns the calendar year shown next to an academic month.
func DisplayYear(index, sessionStartYear int) int {
	if IsNextCalendarYear(index) {
		return sessionStartYear + 1
	}
	return sessionStartYear
}

// SessionStartYear returns the calendar year in which April of the session
// containing asOf falls.
func SessionStartYear(asOf time.Time) int {
	if asOf.Month() >= time.April {
		return asOf.Year()
	}
	return asOf.Year() - 1
}

// SessionStart returns April 1 of the given session start year.
func SessionStart(year int) time.Time {
	return time.Date(year, time.April, 1, 0, 0, 0, 0, time.UTC)
}
