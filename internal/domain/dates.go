package domain

import (
	"fmt"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: date is required", ErrInvalidInput)
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, s)
	}
	return t, nil
}

func FormatDate(t time.Time) string { return Day(t).Format(DateLayout) }

// NightsBetween counts nights in [checkIn, checkOut); zero or negative means an empty stay.
func NightsBetween(checkIn, checkOut time.Time) int {
	return int(Day(checkOut).Sub(Day(checkIn)).Hours() / 24)
}

// ValidateRange rejects zero dates and stays without at least one night.
func ValidateRange(checkIn, checkOut time.Time) error {
	if checkIn.IsZero() || checkOut.IsZero() {
		return fmt.Errorf("%w: check-in and check-out are required", ErrInvalidInput)
	}
	if NightsBetween(checkIn, checkOut) < 1 {
		return ErrInvalidDateRange
	}
	return nil
}

func ValidateGuests(n int) error {
	if n < 1 {
		return ErrInvalidGuestCount
	}
	return nil
}

// OverlapPolicy decides whether two stays on the same room collide.
type OverlapPolicy int

const (
	// OverlapInclusive treats touching boundaries as a conflict: no same-day turnover.
	OverlapInclusive OverlapPolicy = iota
	// OverlapHalfOpen compares [checkIn, checkOut) intervals and allows same-day turnover.
	OverlapHalfOpen
)

func (p OverlapPolicy) String() string {
	if p == OverlapHalfOpen {
		return "half-open"
	}
	return "inclusive"
}

func (p OverlapPolicy) Conflicts(existing Stay, checkIn, checkOut time.Time) bool {
	ei, eo := Day(existing.CheckIn), Day(existing.CheckOut)
	ri, ro := Day(checkIn), Day(checkOut)
	if p == OverlapHalfOpen {
		return ei.Before(ro) && eo.After(ri)
	}
	return !ei.After(ro) && !eo.Before(ri)
}
