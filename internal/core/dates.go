package core

import (
	"fmt"
	"time"
)

// Wire formats used by the backend API. Dates travel oldest-first as
// YYYY-MM-DD; registration timestamps carry a time component; business
// dates are shown day-first.
const (
	wireDateLayout      = "2006-01-02"
	timestampLayout     = "2006-01-02 15:04:05"
	displayDateLayout   = "02/01/2006"
	rangeLabelSeparator = " - "
)

// DateRange is the inclusive query key for a summary request.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both bounds to whole days.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: truncateDay(start), End: truncateDay(end)}
}

// Validate enforces the start <= end precondition before dispatch.
func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return ErrInvalidRange
	}
	if r.Start.After(r.End) {
		return ErrInvalidRange
	}
	return nil
}

// StartWire and EndWire format the bounds for the gateway.
func (r DateRange) StartWire() string { return r.Start.Format(wireDateLayout) }
func (r DateRange) EndWire() string   { return r.End.Format(wireDateLayout) }

// Label renders the range the way summaries display it.
func (r DateRange) Label() string {
	return fmt.Sprintf("%s%s%s",
		r.Start.Format(displayDateLayout),
		rangeLabelSeparator,
		r.End.Format(displayDateLayout))
}

// DefaultRange returns the yesterday-to-today window the summary screen
// opens with.
func DefaultRange(now time.Time) DateRange {
	today := truncateDay(now)
	return DateRange{Start: today.AddDate(0, 0, -1), End: today}
}

// MinSelectableDate is the first day of the month six months back, the
// oldest date the officer may query.
func MinSelectableDate(now time.Time) time.Time {
	// Month arithmetic only: AddDate would normalize day 29-31 into the
	// following month and shift the result a month forward.
	return time.Date(now.Year(), now.Month()-6, 1, 0, 0, 0, 0, now.Location())
}

// ParseWireDate parses a YYYY-MM-DD value from the API or a client request.
func ParseWireDate(s string) (time.Time, error) {
	t, err := time.Parse(wireDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// ParseTimestamp parses a registration timestamp. Values without a time
// component are accepted as midnight.
func ParseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(timestampLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(wireDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// FormatTimestamp renders a capture time as a registration timestamp.
func FormatTimestamp(t time.Time) string { return t.Format(timestampLayout) }

// FormatDisplayDate renders a capture time as a business date.
func FormatDisplayDate(t time.Time) string { return t.Format(displayDateLayout) }

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
