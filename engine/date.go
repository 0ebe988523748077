package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar-day abstraction (the engine operates on day buckets)
// =============================================================================

// Date is a calendar day in UTC. The engine never works at finer
// granularity: metrics, results, and windows are all keyed by day.
type Date struct {
	t time.Time
}

const dateLayout = "2006-01-02"

// Constructors
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t: t.UTC()}, nil
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

func Yesterday() Date {
	return Today().AddDays(-1)
}

// DateOf truncates an arbitrary timestamp to its UTC calendar day.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.t.After(other.t) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.t.Before(other.t) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

func (d Date) String() string { return d.t.Format(dateLayout) }

// DaysBetween returns the number of days from 'from' to 'to'.
// Negative when 'to' precedes 'from'.
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// =============================================================================
// WINDOW - Inclusive date range over which results are aggregated
// =============================================================================

// Window is an inclusive [From, To] calendar-day range.
type Window struct {
	From Date
	To   Date
}

// Valid returns true if the window is well-formed (To not before From).
func (w Window) Valid() bool {
	return !w.From.IsZero() && !w.To.IsZero() && w.To.AfterOrEqual(w.From)
}

// Len returns the number of days in the window, inclusive on both ends.
func (w Window) Len() int {
	return DaysBetween(w.From, w.To) + 1
}

// Contains returns true if the date falls inside the window.
func (w Window) Contains(d Date) bool {
	return d.AfterOrEqual(w.From) && d.BeforeOrEqual(w.To)
}

// Days enumerates every day in the window in ascending order.
func (w Window) Days() []Date {
	if !w.Valid() {
		return nil
	}
	days := make([]Date, 0, w.Len())
	for current := w.From; current.BeforeOrEqual(w.To); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

func (w Window) String() string {
	return "[" + w.From.String() + ", " + w.To.String() + "]"
}
