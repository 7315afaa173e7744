package domain

import (
	"strings"
	"time"
)

// Session is a single class occurrence taken from the timetable export.
type Session struct {
	Date           time.Time // civil date, midnight UTC
	Start          string    // HH:MM as given by the export
	End            string    // HH:MM as given by the export
	Duration       string    // academic hours, raw
	GroupTag       string    // raw cohort code, e.g. "WykS1" or "Cw3S"
	Subject        string
	Room           string
	CompletionForm string
	Note           string // empty when absent
}

// Document is the full session list of one user, rebuilt on every parse.
type Document struct {
	Sessions []Session
}

// Len returns the number of sessions in the document.
func (d Document) Len() int { return len(d.Sessions) }

// Preferences holds per-chat viewing and reminder settings.
type Preferences struct {
	ChatID        int64
	Group         int  // 0 = all groups, 1..N = seminar group
	Notifications bool // reminders 5 minutes before a session
}

// DateOf strips the clock from t and returns its calendar day as midnight UTC.
// The wall-clock day of t in its own location is used.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthBounds returns the first and last calendar day of the month containing d.
func MonthBounds(d time.Time) (first, last time.Time) {
	first = time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
	last = first.AddDate(0, 1, -1)
	return first, last
}

// placeholders are null-equivalent strings emitted by spreadsheet exports.
var placeholders = map[string]struct{}{
	"nan":  {},
	"none": {},
	"null": {},
}

// cleanOptional trims s and maps null-equivalent placeholders to "".
func cleanOptional(s string) string {
	s = strings.TrimSpace(s)
	if _, ok := placeholders[strings.ToLower(s)]; ok {
		return ""
	}
	return s
}
