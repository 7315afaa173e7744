package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Cohort markers used in the export's group column.
const (
	LectureMarker = "WykS" // shared lecture, visible to every group
	SeminarMarker = "Cw"   // numbered seminar group: Cw{N}S
	seminarSuffix = "S"
)

var seminarRe = regexp.MustCompile(SeminarMarker + `(\d+)` + seminarSuffix)

// SeminarTag returns the substring identifying seminar group n, e.g. "Cw3S".
func SeminarTag(n int) string {
	return fmt.Sprintf("%s%d%s", SeminarMarker, n, seminarSuffix)
}

// FilterByGroup narrows sessions to those visible to the given group.
// Group 0 disables filtering. Otherwise lectures and the group's own seminars
// are kept; matching is by substring to tolerate decorated tags.
func FilterByGroup(sessions []Session, group int) []Session {
	if group <= 0 {
		return sessions
	}
	tag := SeminarTag(group)
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if strings.Contains(s.GroupTag, LectureMarker) || strings.Contains(s.GroupTag, tag) {
			out = append(out, s)
		}
	}
	return out
}

// GroupLabel renders a cohort tag for display.
func GroupLabel(tag string, l Labels) string {
	tag = strings.TrimSpace(tag)
	switch {
	case strings.Contains(tag, LectureMarker):
		return l.Lecture
	case strings.Contains(tag, SeminarMarker):
		if m := seminarRe.FindStringSubmatch(tag); len(m) == 2 {
			return fmt.Sprintf(l.SeminarGroup, m[1])
		}
		return l.Seminar
	default:
		return tag
	}
}
