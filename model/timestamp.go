package model

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrBadTimestamp is returned for approach timestamps in no known layout.
var ErrBadTimestamp = errors.New("unrecognised approach timestamp")

// DisplayLayout is the layout used when rendering approach times.
const DisplayLayout = "2006-01-02 15:04"

// CAD feeds use abbreviated month names; serialized output and hand-written
// fixtures use numeric months. Seconds are optional in both.
var timestampLayouts = []string{
	"2006-Jan-02 15:04",
	"2006-01-02 15:04",
	"2006-Jan-02 15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTimestamp parses a calendar timestamp as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrBadTimestamp, "%q", s)
}

// FormatTimestamp renders t in DisplayLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(DisplayLayout)
}

// DateOf strips the time of day, keeping the calendar date in UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "date %q", s)
	}
	return t, nil
}
