package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Session identifies one recording sitting: a date plus an optional
// time-of-day code, parsed from a directory name like "2015-05-05am".
// Immutable once parsed; used as the grouping key for everything the
// sitting produced.
type Session struct {
	Year      int
	Month     int
	Day       int
	TimeOfDay string // "am", "pm", or ""
}

var sessionRe = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})\s*-?(?i:(am|pm))?$`)

// SessionNameError flags a directory whose name does not look like a
// recording session.
type SessionNameError struct {
	Name string
}

func (e *SessionNameError) Error() string {
	return fmt.Sprintf("unrecognized session directory name: %q", e.Name)
}

// ParseSession derives a Session identity from a directory name.
func ParseSession(name string) (Session, error) {
	m := sessionRe.FindStringSubmatch(strings.TrimSpace(name))
	if m == nil {
		return Session{}, &SessionNameError{Name: name}
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return Session{}, &SessionNameError{Name: name}
	}

	return Session{
		Year:      year,
		Month:     month,
		Day:       day,
		TimeOfDay: strings.ToLower(m[4]),
	}, nil
}

// ID returns the canonical form, e.g. "2015-05-05am". Two directories
// with the same ID refer to the same sitting.
func (s Session) ID() string {
	return fmt.Sprintf("%04d-%02d-%02d%s", s.Year, s.Month, s.Day, s.TimeOfDay)
}

func (s Session) String() string { return s.ID() }
