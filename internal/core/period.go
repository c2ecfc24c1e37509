package core

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// MinDate and MaxDate bound the whole UTC days whose instants fit in int64
// nanoseconds since the Unix epoch, the representation used by the SQL store.
var (
	MinDate = time.Date(1678, 1, 1, 0, 0, 0, 0, time.UTC)
	MaxDate = time.Date(2262, 4, 10, 23, 59, 59, 999999999, time.UTC)
)

var ErrDateOutOfRange = errors.New("date outside supported range 1678-01-01..2262-04-10")

// CheckDate rejects instants outside [MinDate, MaxDate].
func CheckDate(t time.Time) error {
	if t.Before(MinDate) || t.After(MaxDate) {
		return fmt.Errorf("%w: %s", ErrDateOutOfRange, t.UTC().Format(time.RFC3339))
	}
	return nil
}

// ClampDate moves t into [MinDate, MaxDate].
func ClampDate(t time.Time) time.Time {
	switch {
	case t.Before(MinDate):
		return MinDate
	case t.After(MaxDate):
		return MaxDate
	default:
		return t
	}
}

// Period is a closed time interval covering whole calendar days.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod expands the calendar days start and end into
// [start 00:00:00, end 23:59:59.999999999] in UTC. Bounds reaching past the
// supported date range are clamped to it; a period lying wholly outside it
// is rejected.
func NewPeriod(start, end time.Time) (Period, error) {
	if start.IsZero() {
		return Period{}, fmt.Errorf("%w: start date is required", ErrInvalidArgument)
	}
	if end.IsZero() {
		return Period{}, fmt.Errorf("%w: end date is required", ErrInvalidArgument)
	}
	s := StartOfDay(start)
	e := EndOfDay(end)
	if s.After(e) {
		return Period{}, fmt.Errorf("%w: %w", ErrInvalidArgument, ErrInvalidRange)
	}
	if e.Before(MinDate) || s.After(MaxDate) {
		return Period{}, fmt.Errorf("%w: %w", ErrInvalidArgument, ErrDateOutOfRange)
	}
	return Period{Start: ClampDate(s), End: ClampDate(e)}, nil
}

// Contains reports whether t falls inside p, both bounds inclusive.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// StartOfDay truncates t to midnight of its calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 999999999, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q", ErrInvalidArgument, s)
	}
	return t, nil
}
