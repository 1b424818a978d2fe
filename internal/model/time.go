package model

import (
	"fmt"
	"time"
)

// timeLayouts are the accepted wire formats for datetime fields, in the
// order they are tried. Documents arrive with either native datetimes
// or ISO-8601 strings, with or without sub-second precision.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseTime parses a datetime that may be stored as an ISO-8601 string
// in any of the accepted layouts. Layouts without an offset are read
// as UTC.
func ParseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized datetime %q", s)
}
