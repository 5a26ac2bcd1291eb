package recur

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // zone rules must not depend on the host's zoneinfo

	"github.com/teambition/rrule-go"

	"mobcal/internal/model"
)

// Generator produces the occurrence start instants of one schedule entry.
// It holds only immutable values; every evaluation builds a fresh rrule-go
// iterator from them.
type Generator struct {
	rule   Rule
	loc    *time.Location
	clock  model.Clock
	anchor time.Time
}

// LoadZone resolves an IANA zone identifier. "Local" and the empty string
// are rejected because they depend on the host.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownTimeZone, name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", model.ErrUnknownTimeZone, name, err)
	}
	return loc, nil
}

// Anchor returns the first candidate instant of a rule: the local date
// (from, or the zone's local date at the Unix epoch when from is zero) at
// the clock's wall time, resolved with the zone's offset rules for that
// local time.
func Anchor(loc *time.Location, clock model.Clock, from model.Date) time.Time {
	d := from
	if d.IsZero() {
		e := time.Unix(0, 0).In(loc)
		d = model.Date{Year: e.Year(), Month: e.Month(), Day: e.Day()}
	}
	return time.Date(d.Year, d.Month, d.Day, clock.Hour, clock.Minute, 0, 0, loc)
}

// Compile builds a Generator anchored at the zone's local epoch date.
func Compile(text, zone string, clock model.Clock) (*Generator, error) {
	return CompileOn(text, zone, clock, model.Date{})
}

// CompileOn builds a Generator anchored at the local date from.
func CompileOn(text, zone string, clock model.Clock, from model.Date) (*Generator, error) {
	if clock.Hour < 0 || clock.Hour > 23 || clock.Minute < 0 || clock.Minute > 59 {
		return nil, fmt.Errorf("%w: %s", model.ErrInvalidTimeOfDay, clock)
	}
	loc, err := LoadZone(zone)
	if err != nil {
		return nil, err
	}
	rule, err := ParseRule(text)
	if err != nil {
		return nil, err
	}

	g := &Generator{
		rule:   rule,
		loc:    loc,
		clock:  clock,
		anchor: Anchor(loc, clock, from),
	}
	// rrule-go range-checks some parts (BYSETPOS, BYMONTHDAY) only when
	// the rule is built.
	if _, err := rrule.NewRRule(rule.options(g.anchor, g.anchor, clock)); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", model.ErrInvalidRule, text, err)
	}
	return g, nil
}

func (g *Generator) Rule() Rule { return g.rule }

func (g *Generator) Location() *time.Location { return g.loc }

func (g *Generator) Anchor() time.Time { return g.anchor }
