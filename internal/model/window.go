package model

import (
	"fmt"
	"time"
)

const (
	DefaultBackfillDays = 7
	DefaultHorizonDays  = 100
)

// Window is an inclusive range of absolute instants. It is immutable once
// built and safe to share between goroutines.
type Window struct {
	lower time.Time
	upper time.Time
}

// NewWindow builds [lower, upper]. lower must not be after upper.
func NewWindow(lower, upper time.Time) (Window, error) {
	if lower.After(upper) {
		return Window{}, fmt.Errorf("%w: lower bound %s is after upper bound %s",
			ErrInvalidWindow, lower.Format(time.RFC3339), upper.Format(time.RFC3339))
	}
	return Window{lower: lower, upper: upper}, nil
}

// WindowAround returns [now - backDays*24h, now + aheadDays*24h]. Days are
// fixed 24 hour spans of absolute time.
func WindowAround(now time.Time, backDays, aheadDays int) (Window, error) {
	day := 24 * time.Hour
	return NewWindow(
		now.Add(-time.Duration(backDays)*day),
		now.Add(time.Duration(aheadDays)*day),
	)
}

// DefaultWindow is the observation window of one evaluation run:
// [now - 7d, now + 100d].
func DefaultWindow(now time.Time) Window {
	w, _ := WindowAround(now, DefaultBackfillDays, DefaultHorizonDays)
	return w
}

func (w Window) Lower() time.Time { return w.lower }
func (w Window) Upper() time.Time { return w.upper }

// Contains reports whether t lies in the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.lower) && !t.After(w.upper)
}
