package recur

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"mobcal/internal/model"
)

// Rule is a recurrence rule compiled from its textual form. It carries no
// start instant or zone; those are supplied when a Generator is built.
type Rule struct {
	Freq     rrule.Frequency
	Interval int
	Count    int

	// Until is an absolute limit taken from RFC text. UntilDate is a local
	// date limit from natural text, resolved to the end of that day in the
	// entry's zone. At most one of them is set.
	Until     time.Time
	UntilDate model.Date

	Wkst      *rrule.Weekday
	Weekdays  []rrule.Weekday
	MonthDays []int
	Months    []int
	YearDays  []int
	WeekNos   []int
	SetPos    []int
	Hours     []int
	Minutes   []int
	Seconds   []int
}

// ParseRule compiles either RFC 5545 RRULE text or the natural-language
// form into a Rule.
func ParseRule(text string) (Rule, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Rule{}, fmt.Errorf("%w: empty rule", model.ErrInvalidRule)
	}
	if isRFC(s) {
		return parseRFC(s)
	}
	return parseText(s)
}

func isRFC(s string) bool {
	u := strings.ToUpper(s)
	return strings.HasPrefix(u, "RRULE:") || strings.Contains(u, "FREQ=")
}

func parseRFC(s string) (Rule, error) {
	line := s
	for _, l := range strings.Split(s, "\n") {
		l = strings.TrimSpace(l)
		if strings.HasPrefix(strings.ToUpper(l), "RRULE:") {
			line = l[len("RRULE:"):]
			break
		}
	}
	opt, err := rrule.StrToROption(strings.TrimSpace(line))
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %q: %v", model.ErrInvalidRule, s, err)
	}
	r := Rule{
		Freq:      opt.Freq,
		Interval:  opt.Interval,
		Count:     opt.Count,
		Until:     opt.Until,
		Weekdays:  opt.Byweekday,
		MonthDays: opt.Bymonthday,
		Months:    opt.Bymonth,
		YearDays:  opt.Byyearday,
		WeekNos:   opt.Byweekno,
		SetPos:    opt.Bysetpos,
		Hours:     opt.Byhour,
		Minutes:   opt.Byminute,
		Seconds:   opt.Bysecond,
	}
	if strings.Contains(strings.ToUpper(line), "WKST=") {
		wkst := opt.Wkst
		r.Wkst = &wkst
	}
	return r, nil
}

func (r Rule) interval() int {
	if r.Interval < 1 {
		return 1
	}
	return r.Interval
}

// options renders r as rrule-go options starting at dtstart. For daily and
// coarser rules without explicit time parts, the occurrence time of day is
// pinned to clock so that it does not drift when dtstart itself had to be
// normalized across a DST gap.
//
// The day parts rrule-go would otherwise derive from dtstart are taken
// from anchor instead, so a dtstart moved forward never changes the rule.
func (r Rule) options(dtstart, anchor time.Time, clock model.Clock) rrule.ROption {
	opt := rrule.ROption{
		Freq:       r.Freq,
		Dtstart:    dtstart,
		Interval:   r.interval(),
		Count:      r.Count,
		Until:      r.Until,
		Byweekday:  r.Weekdays,
		Bymonthday: r.MonthDays,
		Bymonth:    r.Months,
		Byyearday:  r.YearDays,
		Byweekno:   r.WeekNos,
		Bysetpos:   r.SetPos,
		Byhour:     r.Hours,
		Byminute:   r.Minutes,
		Bysecond:   r.Seconds,
	}
	if r.Wkst != nil {
		opt.Wkst = *r.Wkst
	}
	if !r.UntilDate.IsZero() {
		d := r.UntilDate
		opt.Until = time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 0, dtstart.Location())
	}
	if r.Freq <= rrule.DAILY && len(r.Hours) == 0 && len(r.Minutes) == 0 && len(r.Seconds) == 0 {
		opt.Byhour = []int{clock.Hour}
		opt.Byminute = []int{clock.Minute}
		opt.Bysecond = []int{0}
	}
	if len(r.WeekNos) == 0 && len(r.YearDays) == 0 && len(r.MonthDays) == 0 && len(r.Weekdays) == 0 {
		switch r.Freq {
		case rrule.YEARLY:
			if len(r.Months) == 0 {
				opt.Bymonth = []int{int(anchor.Month())}
			}
			opt.Bymonthday = []int{anchor.Day()}
		case rrule.MONTHLY:
			opt.Bymonthday = []int{anchor.Day()}
		case rrule.WEEKLY:
			opt.Byweekday = []rrule.Weekday{weekdayFor(anchor.Weekday())}
		}
	}
	return opt
}

// weekdayFor maps a time.Weekday onto rrule-go's Monday-first weekdays.
func weekdayFor(d time.Weekday) rrule.Weekday {
	return [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}[d]
}

var freqNames = map[rrule.Frequency]string{
	rrule.YEARLY:   "YEARLY",
	rrule.MONTHLY:  "MONTHLY",
	rrule.WEEKLY:   "WEEKLY",
	rrule.DAILY:    "DAILY",
	rrule.HOURLY:   "HOURLY",
	rrule.MINUTELY: "MINUTELY",
	rrule.SECONDLY: "SECONDLY",
}

var dayNames = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

// String renders the rule in RFC 5545 form, e.g.
// "FREQ=WEEKLY;BYDAY=MO,TU,WE,TH,FR".
func (r Rule) String() string {
	parts := []string{"FREQ=" + freqNames[r.Freq]}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	if r.Wkst != nil {
		parts = append(parts, "WKST="+dayNames[r.Wkst.Day()])
	}
	if r.Count > 0 {
		parts = append(parts, "COUNT="+strconv.Itoa(r.Count))
	}
	if !r.Until.IsZero() {
		parts = append(parts, "UNTIL="+r.Until.UTC().Format("20060102T150405Z"))
	} else if !r.UntilDate.IsZero() {
		d := r.UntilDate
		parts = append(parts, fmt.Sprintf("UNTIL=%04d%02d%02d", d.Year, d.Month, d.Day))
	}
	parts = appendInts(parts, "BYSETPOS", r.SetPos)
	parts = appendInts(parts, "BYMONTH", r.Months)
	parts = appendInts(parts, "BYMONTHDAY", r.MonthDays)
	parts = appendInts(parts, "BYYEARDAY", r.YearDays)
	parts = appendInts(parts, "BYWEEKNO", r.WeekNos)
	if len(r.Weekdays) > 0 {
		days := make([]string, 0, len(r.Weekdays))
		for _, wd := range r.Weekdays {
			s := dayNames[wd.Day()]
			if n := wd.N(); n != 0 {
				s = strconv.Itoa(n) + s
			}
			days = append(days, s)
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	parts = appendInts(parts, "BYHOUR", r.Hours)
	parts = appendInts(parts, "BYMINUTE", r.Minutes)
	parts = appendInts(parts, "BYSECOND", r.Seconds)
	return strings.Join(parts, ";")
}

func appendInts(parts []string, key string, vals []int) []string {
	if len(vals) == 0 {
		return parts
	}
	s := make([]string, len(vals))
	for i, v := range vals {
		s[i] = strconv.Itoa(v)
	}
	return append(parts, key+"="+strings.Join(s, ","))
}
