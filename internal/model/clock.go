package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a local time of day.
type Clock struct {
	Hour   int
	Minute int
}

// Length is a wall-clock duration expressed as local hour and minute fields.
type Length struct {
	Hours   int
	Minutes int
}

// Date is a local calendar date without zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (l Length) String() string {
	return fmt.Sprintf("%02d:%02d", l.Hours, l.Minutes)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// ParseClock parses "HH:MM" with hour 0-23 and minute 0-59.
func ParseClock(s string) (Clock, error) {
	h, m, err := splitHHMM(s)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q: %v", ErrInvalidTimeOfDay, s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("%w: %q out of range", ErrInvalidTimeOfDay, s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// ParseLength parses "HH:MM" where hours may exceed 23. The length must be
// positive so that every occurrence ends after it starts.
func ParseLength(s string) (Length, error) {
	h, m, err := splitHHMM(s)
	if err != nil {
		return Length{}, fmt.Errorf("%w: %q: %v", ErrInvalidDuration, s, err)
	}
	l := Length{Hours: h, Minutes: m}
	if err := l.Validate(); err != nil {
		return Length{}, fmt.Errorf("%w (%q)", err, s)
	}
	return l, nil
}

// Validate reports whether l is a positive wall-clock length.
func (l Length) Validate() error {
	if l.Hours < 0 || l.Minutes < 0 || l.Minutes > 59 {
		return fmt.Errorf("%w: %s out of range", ErrInvalidDuration, l)
	}
	if l.Hours == 0 && l.Minutes == 0 {
		return fmt.Errorf("%w: must be positive", ErrInvalidDuration)
	}
	return nil
}

// ParseDate parses "YYYY-MM-DD" and rejects dates that do not exist.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid start date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func splitHHMM(s string) (int, int, error) {
	hs, ms, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || hs == "" || len(ms) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM")
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, err
	}
	m, err := strconv.Atoi(ms)
	if err != nil {
		return 0, 0, err
	}
	return h, m, nil
}
