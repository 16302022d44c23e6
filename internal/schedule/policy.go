// Package schedule holds the publishing-window policy: posts go out on
// weekdays, in the afternoon, in one fixed reference timezone.
package schedule

import (
	"fmt"
	"time"
)

// Policy describes the allowed publishing window. Hours are in Location and
// the window is [StartHour, EndHour).
type Policy struct {
	Location  *time.Location
	StartHour int
	EndHour   int
}

// NewPolicy loads the named timezone and returns a Policy for it.
func NewPolicy(timezone string, startHour, endHour int) (Policy, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Policy{}, fmt.Errorf("schedule: load timezone %q: %w", timezone, err)
	}
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return Policy{}, fmt.Errorf("schedule: invalid window %d-%d", startHour, endHour)
	}
	return Policy{Location: loc, StartHour: startHour, EndHour: endHour}, nil
}

// Allows reports whether t falls inside the publishing window.
func (p Policy) Allows(t time.Time) bool {
	local := t.In(p.Location)
	if !isWeekday(local.Weekday()) {
		return false
	}
	h := local.Hour()
	return h >= p.StartHour && h < p.EndHour
}

// Check returns a descriptive error when t falls outside the window.
func (p Policy) Check(t time.Time) error {
	if p.Allows(t) {
		return nil
	}
	local := t.In(p.Location)
	return fmt.Errorf("%s is outside the publishing window (weekdays %02d:00-%02d:00 %s)",
		local.Format(time.RFC3339), p.StartHour, p.EndHour, p.Location)
}

// NextSlot returns the earliest whole hour at or after from that the policy
// allows.
func (p Policy) NextSlot(from time.Time) time.Time {
	local := from.In(p.Location)
	// Truncate works on absolute time, which misses the local hour in zones
	// with a fractional UTC offset.
	candidate := time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, p.Location)
	if candidate.Before(local) {
		candidate = candidate.Add(time.Hour)
	}
	// A week of hours always contains a weekday window.
	for range 7 * 24 {
		if p.Allows(candidate) {
			return candidate
		}
		candidate = candidate.Add(time.Hour)
	}
	return candidate
}

func isWeekday(d time.Weekday) bool {
	return d != time.Saturday && d != time.Sunday
}
