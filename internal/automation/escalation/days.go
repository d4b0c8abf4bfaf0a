// Package escalation holds the pure policies that turn current facts (counts,
// elapsed days) into a discrete severity. Nothing here keeps state between
// runs; every level is recomputed from the facts passed in.
package escalation

import "time"

// DaysBetween counts calendar days from from to to in loc. It is negative
// when to is before from.
func DaysBetween(from, to time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	a := StartOfDay(from, loc)
	b := StartOfDay(to, loc)
	// Dates are normalised to UTC midnight so DST shifts cannot produce
	// 23 or 25 hour days.
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
