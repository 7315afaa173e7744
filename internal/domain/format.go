package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Labels holds every user-visible word the formatter emits.
type Labels struct {
	Weekdays     [7]string // Monday first
	Empty        string    // appended to the title when nothing is scheduled
	AfterFilter  string    // inserted before Empty when the group filter hid everything
	Lecture      string
	Seminar      string
	SeminarGroup string // fmt pattern taking the group number as %s
	TitleIcon    string
	DayIcon      string
	TimeIcon     string
	GroupIcon    string
	SubjectIcon  string
	RoomIcon     string
	NoteIcon     string
}

// DefaultLabels is the English label table.
var DefaultLabels = Labels{
	Weekdays:     [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"},
	Empty:        "is empty 📭",
	AfterFilter:  "(after filter)",
	Lecture:      "Lecture",
	Seminar:      "Seminar",
	SeminarGroup: "Seminar (group %s)",
	TitleIcon:    "📅",
	DayIcon:      "🗓️",
	TimeIcon:     "⏰",
	GroupIcon:    "👥",
	SubjectIcon:  "📖",
	RoomIcon:     "🏫",
	NoteIcon:     "📝",
}

// Weekday maps Go's Sunday-first weekday onto the Monday-first table.
func (l Labels) Weekday(d time.Time) string {
	return l.Weekdays[(int(d.Weekday())+6)%7]
}

// Formatter renders sessions as chat text.
type Formatter struct {
	Labels Labels
}

// NewFormatter returns a Formatter using l.
func NewFormatter(l Labels) *Formatter {
	return &Formatter{Labels: l}
}

// Empty renders the empty-state line for title.
func (f *Formatter) Empty(title string) string {
	return title + " " + f.Labels.Empty
}

// EmptyAfterFilter renders the empty-state line used when the group filter
// removed every session.
func (f *Formatter) EmptyAfterFilter(title string) string {
	return title + " " + f.Labels.AfterFilter + " " + f.Labels.Empty
}

// Format groups sessions by day in ascending date order and lists each day's
// sessions by start time. Starts that are not HH:MM go last, keeping input order.
func (f *Formatter) Format(sessions []Session, title string) string {
	if len(sessions) == 0 {
		return f.Empty(title)
	}
	l := f.Labels

	byDay := make(map[time.Time][]Session)
	var days []time.Time
	for _, s := range sessions {
		if _, ok := byDay[s.Date]; !ok {
			days = append(days, s.Date)
		}
		byDay[s.Date] = append(byDay[s.Date], s)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var b strings.Builder
	b.WriteString(l.TitleIcon + " " + title + ":\n\n")
	for _, day := range days {
		b.WriteString(l.DayIcon + " " + l.Weekday(day) + ", " + day.Format("02.01.2006") + "\n\n")
		for _, s := range SortByStart(byDay[day]) {
			b.WriteString(l.TimeIcon + " " + s.Start + " - " + s.End + "\n")
			if label := GroupLabel(s.GroupTag, l); label != "" {
				b.WriteString(l.GroupIcon + " " + label + "\n")
			}
			b.WriteString(l.SubjectIcon + " " + s.Subject + "\n")
			b.WriteString(l.RoomIcon + " " + s.Room + "\n")
			if note := cleanOptional(s.Note); note != "" {
				b.WriteString(l.NoteIcon + " " + note + "\n")
			}
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// SortByStart returns a copy of sessions ordered by start time.
func SortByStart(sessions []Session) []Session {
	out := make([]Session, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool {
		return startKey(out[i]) < startKey(out[j])
	})
	return out
}

func startKey(s Session) int {
	m, err := ParseClock(s.Start)
	if err != nil {
		return math.MaxInt
	}
	return m
}
