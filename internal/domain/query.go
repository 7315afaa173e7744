package domain

import "time"

// OnDate returns the sessions held on day d. The result is empty, not nil,
// when the document has nothing that day.
func (d Document) OnDate(day time.Time) []Session {
	day = DateOf(day)
	out := []Session{}
	for _, s := range d.Sessions {
		if s.Date.Equal(day) {
			out = append(out, s)
		}
	}
	return out
}

// Between returns the sessions whose date lies in [from, to].
func (d Document) Between(from, to time.Time) []Session {
	from, to = DateOf(from), DateOf(to)
	out := []Session{}
	for _, s := range d.Sessions {
		if !s.Date.Before(from) && !s.Date.After(to) {
			out = append(out, s)
		}
	}
	return out
}

// StartingAt returns the sessions on day that start exactly at clock (HH:MM).
// The comparison is textual, as the export writes it.
func (d Document) StartingAt(day time.Time, clock string) []Session {
	var out []Session
	for _, s := range d.OnDate(day) {
		if s.Start == clock {
			out = append(out, s)
		}
	}
	return out
}
