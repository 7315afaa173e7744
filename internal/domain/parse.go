package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Column positions of the timetable export. The first column carries
// date-header labels; data rows leave it empty.
const (
	colMarker = iota
	colStart
	colEnd
	colDuration
	colGroup
	colSubject
	colRoom
	colCompletion
	colNote
	colPlaceholder
)

const (
	// DefaultDateMarker prefixes the first cell of a date-header row.
	DefaultDateMarker = "Data Zajec"
	// DateLayout is the layout of the date token inside a date header.
	DateLayout = "2006.01.02"
)

var (
	ErrEmptyClock   = errors.New("empty clock")
	ErrInvalidClock = errors.New("invalid clock")
)

// Parser turns raw export rows into sessions.
// It keeps no state between Parse calls.
type Parser struct {
	DateMarker string
	log        *zap.Logger
}

// NewParser returns a Parser recognising the default date-header marker.
func NewParser(log *zap.Logger) *Parser {
	if log == nil {
		log = zap.NewNop()
	}
	return &Parser{DateMarker: DefaultDateMarker, log: log}
}

// Parse walks rows in order, tracking the date announced by the most recent
// date header. A header with an unreadable date clears the current date, so
// rows up to the next valid header are dropped rather than misattributed.
// Only rows with both a date and a start time become sessions.
func (p *Parser) Parse(rows [][]string) Document {
	var (
		current time.Time
		doc     Document
	)
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		first := strings.TrimSpace(cell(row, colMarker))
		if strings.HasPrefix(first, p.DateMarker) {
			d, err := parseHeaderDate(first)
			if err != nil {
				p.log.Warn("date header not parsed",
					zap.Int("row", i), zap.String("cell", first), zap.Error(err))
				current = time.Time{}
				continue
			}
			current = d
			continue
		}

		start := strings.TrimSpace(cell(row, colStart))
		if current.IsZero() || start == "" {
			continue
		}
		doc.Sessions = append(doc.Sessions, Session{
			Date:           current,
			Start:          start,
			End:            strings.TrimSpace(cell(row, colEnd)),
			Duration:       strings.TrimSpace(cell(row, colDuration)),
			GroupTag:       strings.TrimSpace(cell(row, colGroup)),
			Subject:        strings.TrimSpace(cell(row, colSubject)),
			Room:           strings.TrimSpace(cell(row, colRoom)),
			CompletionForm: cleanOptional(cell(row, colCompletion)),
			Note:           cleanOptional(cell(row, colNote)),
		})
	}
	p.log.Debug("export parsed", zap.Int("rows", len(rows)), zap.Int("sessions", doc.Len()))
	return doc
}

// parseHeaderDate reads the third whitespace-separated token of a header cell,
// e.g. "Data Zajec: 2024.03.15 piątek".
func parseHeaderDate(s string) (time.Time, error) {
	parts := strings.Fields(s)
	if len(parts) < 3 {
		return time.Time{}, fmt.Errorf("header %q: missing date token", s)
	}
	d, err := time.Parse(DateLayout, parts[2])
	if err != nil {
		return time.Time{}, err
	}
	return d, nil
}

// cell returns row[i] or "" when the row is shorter. Columns past
// colPlaceholder are never read.
func cell(row []string, i int) string {
	if i >= len(row) || i > colPlaceholder {
		return ""
	}
	return row[i]
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyClock
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: hour in %s", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: minute in %s", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// ClockAfter formats t+lead as HH:MM, the key the reminder sweep compares
// session start times against.
func ClockAfter(t time.Time, lead time.Duration) string {
	return t.Add(lead).Format("15:04")
}
