package domain

import "time"

// TimeOfDay is minutes since local midnight. The core works in integer
// minutes throughout; seconds are never consulted.
type TimeOfDay int

// TimeOfDayFrom derives a TimeOfDay from a time.Time, discarding seconds.
func TimeOfDayFrom(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// On combines a TimeOfDay with a calendar date to produce a concrete instant
// in the given location.
func (t TimeOfDay) On(date time.Time, loc *time.Location) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).Add(time.Duration(t) * time.Minute)
}

func (t TimeOfDay) Add(minutes int) TimeOfDay {
	return t + TimeOfDay(minutes)
}

// HourRange is a half-open [From, To) window on a single day, or Closed.
type HourRange struct {
	Closed bool
	From   TimeOfDay
	To     TimeOfDay
}

// Intersect returns the tightest window covered by both ranges. If either is
// closed, or the result is empty (open >= close), the result is Closed.
func (h HourRange) Intersect(other HourRange) HourRange {
	if h.Closed || other.Closed {
		return HourRange{Closed: true}
	}
	open := h.From
	if other.From > open {
		open = other.From
	}
	close := h.To
	if other.To < close {
		close = other.To
	}
	if open >= close {
		return HourRange{Closed: true}
	}
	return HourRange{From: open, To: close}
}
