// Package timewindow parses and validates the time range a log search covers.
package timewindow

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvertedWindow is returned when start lies after end once end has
	// been clamped to now.
	ErrInvertedWindow = errors.New("time window start is after end")

	// ErrInvalidTime is returned for timestamps that match no accepted layout.
	ErrInvalidTime = errors.New("invalid time")
)

// Window is an inclusive [Start, End] range. End never lies in the future.
type Window struct {
	Start time.Time
	End   time.Time
}

// New clamps end to now and validates the result.
func New(start, end, now time.Time) (Window, error) {
	if end.After(now) {
		end = now
	}
	if start.After(end) {
		return Window{}, fmt.Errorf("%w: %s > %s", ErrInvertedWindow,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Window{Start: start, End: end}, nil
}

// Parse builds a window from user supplied strings interpreted in loc.
// A date-only start means the start of that day; a date-only end means the
// end of that day.
func Parse(start, end string, loc *time.Location, now time.Time) (Window, error) {
	startTime, err := ParseTime(start, loc, false)
	if err != nil {
		return Window{}, fmt.Errorf("start: %w", err)
	}
	endTime, err := ParseTime(end, loc, true)
	if err != nil {
		return Window{}, fmt.Errorf("end: %w", err)
	}
	return New(startTime, endTime, now.In(loc))
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
}

const dateLayout = "2006-01-02"

// ParseTime parses value in loc. Layouts carrying an offset keep it.
func ParseTime(value string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidTime)
	}

	if day, err := time.ParseInLocation(dateLayout, value, loc); err == nil {
		if endOfDay {
			return day.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
		}
		return day, nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t.In(loc), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
}

// Location resolves an IANA zone name. Empty means UTC.
func Location(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", name, err)
	}
	return loc, nil
}
