package recur

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"mobcal/internal/model"
)

// Evaluate returns the occurrence starts of g inside w.
func Evaluate(g *Generator, w model.Window) ([]time.Time, error) {
	return g.Between(w.Lower(), w.Upper())
}

// Between returns the ascending, duplicate-free occurrence starts in
// [lower, upper], both bounds included.
//
// The rule's start is first moved forward by whole recurrence periods to
// just before lower, so the work done is bounded by the number of
// occurrences in the range rather than by the time elapsed since the
// anchor. Rules limited by COUNT are evaluated from the anchor because the
// count is relative to it; their cost is bounded by COUNT instead.
func (g *Generator) Between(lower, upper time.Time) ([]time.Time, error) {
	if lower.After(upper) {
		return nil, fmt.Errorf("%w: lower bound %s is after upper bound %s",
			model.ErrInvalidWindow, lower.Format(time.RFC3339), upper.Format(time.RFC3339))
	}

	r, err := rrule.NewRRule(g.rule.options(g.seek(lower), g.anchor, g.clock))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrInvalidRule, err)
	}

	times := r.Between(lower.In(g.loc), upper.In(g.loc), true)
	out := make([]time.Time, 0, len(times))
	for _, t := range times {
		// Two wall times may resolve to one instant inside a DST gap.
		if n := len(out); n > 0 && !t.After(out[n-1]) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// seek returns a start for the rule that lies on the rule's own period
// lattice, at least one full period before lower (or the anchor itself
// when no such start exists). The rule's occurrences from that start on
// are exactly the anchored rule's occurrences from that start on.
func (g *Generator) seek(lower time.Time) time.Time {
	a := g.anchor
	if g.rule.Count > 0 || !lower.After(a) {
		return a
	}
	target := lower.In(g.loc)
	n := g.rule.interval()
	h, m := g.clock.Hour, g.clock.Minute

	switch g.rule.Freq {
	case rrule.DAILY, rrule.WEEKLY:
		step := n
		if g.rule.Freq == rrule.WEEKLY {
			step = 7 * n
		}
		k := civilDays(a, target)/step - 1
		if k <= 0 {
			return a
		}
		return time.Date(a.Year(), a.Month(), a.Day()+k*step, h, m, 0, 0, g.loc)

	case rrule.MONTHLY:
		// Days past the 28th do not exist in every month; moving by
		// whole years keeps the anchor's month and day valid, and by
		// leap cycles for Feb 29.
		step := n
		if a.Day() > 28 {
			step = lcm(n, 12)
			if leapDay(a) {
				step = lcm(n, 48)
			}
		}
		months := (target.Year()-a.Year())*12 + int(target.Month()-a.Month())
		for k := months/step - 1; k > 0; k-- {
			t := time.Date(a.Year(), a.Month()+time.Month(k*step), a.Day(), h, m, 0, 0, g.loc)
			if t.Day() == a.Day() {
				return t
			}
		}
		return a

	case rrule.YEARLY:
		step := n
		if leapDay(a) {
			step = lcm(n, 4)
		}
		for k := (target.Year()-a.Year())/step - 1; k > 0; k-- {
			t := time.Date(a.Year()+k*step, a.Month(), a.Day(), h, m, 0, 0, g.loc)
			if t.Day() == a.Day() {
				return t
			}
		}
		return a

	case rrule.HOURLY, rrule.MINUTELY, rrule.SECONDLY:
		// rrule-go steps these in local wall time, so the lattice is
		// measured on wall-clock fields, not on absolute instants.
		unit := time.Hour
		if g.rule.Freq == rrule.MINUTELY {
			unit = time.Minute
		} else if g.rule.Freq == rrule.SECONDLY {
			unit = time.Second
		}
		step := time.Duration(n) * unit
		// A start inside a DST gap would be normalized off the lattice;
		// step back until the wall time exists.
		for k := int64(civil(target).Sub(civil(a))/step) - 1; k > 0; k-- {
			c := civil(a).Add(time.Duration(k) * step)
			t := time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), c.Minute(), c.Second(), 0, g.loc)
			if civil(t).Equal(c) {
				return t
			}
		}
		return a
	}
	return a
}

func leapDay(t time.Time) bool {
	return t.Month() == time.February && t.Day() == 29
}

// civil reinterprets t's wall-clock fields as a UTC instant.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// civilDays counts calendar days from a's local date to b's local date.
func civilDays(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da) / (24 * time.Hour))
}

func lcm(a, b int) int {
	x, y := a, b
	for y != 0 {
		x, y = y, x%y
	}
	return a / x * b
}
