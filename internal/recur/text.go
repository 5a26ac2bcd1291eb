package recur

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"mobcal/internal/model"
)

// Natural-language grammar, case-insensitive:
//
//	rule     = head { modifier }
//	head     = "every" [ N | "other" ] unit
//	         | "every" weekday-list
//	         | "every" ( "weekday" | "weekend" )
//	         | "daily" | "weekly" | "monthly" | "yearly" | "annually" | "hourly"
//	unit     = "day" | "week" | "month" | "year" | "hour" | "minute" | plural
//	modifier = "on" weekday-list
//	         | "on" ( "weekdays" | "weekends" )
//	         | "on the" ordinal-list [ weekday | "day" ]
//	         | "in" month-list
//	         | "for" N ( "time" | "times" )
//	         | "until" date
//
// Lists are joined by "," and/or "and". Ordinals are "1st", "2nd", "first",
// "last", "2nd last" and so on.

var weekdayWords = map[string]rrule.Weekday{
	"monday": rrule.MO, "mon": rrule.MO, "mo": rrule.MO,
	"tuesday": rrule.TU, "tue": rrule.TU, "tues": rrule.TU, "tu": rrule.TU,
	"wednesday": rrule.WE, "wed": rrule.WE, "we": rrule.WE,
	"thursday": rrule.TH, "thu": rrule.TH, "thur": rrule.TH, "thurs": rrule.TH, "th": rrule.TH,
	"friday": rrule.FR, "fri": rrule.FR, "fr": rrule.FR,
	"saturday": rrule.SA, "sat": rrule.SA, "sa": rrule.SA,
	"sunday": rrule.SU, "sun": rrule.SU, "su": rrule.SU,
}

var (
	workWeek = []rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR}
	weekend  = []rrule.Weekday{rrule.SA, rrule.SU}
)

var unitWords = map[string]rrule.Frequency{
	"day": rrule.DAILY, "days": rrule.DAILY,
	"week": rrule.WEEKLY, "weeks": rrule.WEEKLY,
	"month": rrule.MONTHLY, "months": rrule.MONTHLY,
	"year": rrule.YEARLY, "years": rrule.YEARLY,
	"hour": rrule.HOURLY, "hours": rrule.HOURLY,
	"minute": rrule.MINUTELY, "minutes": rrule.MINUTELY,
}

var adverbs = map[string]rrule.Frequency{
	"daily":    rrule.DAILY,
	"weekly":   rrule.WEEKLY,
	"monthly":  rrule.MONTHLY,
	"yearly":   rrule.YEARLY,
	"annually": rrule.YEARLY,
	"hourly":   rrule.HOURLY,
}

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"last": -1,
}

type textParser struct {
	toks []string
	pos  int
	rule Rule
}

func parseText(s string) (Rule, error) {
	p := &textParser{toks: tokenize(s)}
	if err := p.parse(); err != nil {
		return Rule{}, fmt.Errorf("%w: %q: %v", model.ErrInvalidRule, s, err)
	}
	return p.rule, nil
}

func tokenize(s string) []string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, ",", " , ")
	return strings.Fields(s)
}

func (p *textParser) peek() string {
	if p.pos >= len(p.toks) {
		return ""
	}
	return p.toks[p.pos]
}

func (p *textParser) next() string {
	t := p.peek()
	if t != "" {
		p.pos++
	}
	return t
}

func (p *textParser) accept(words ...string) bool {
	t := p.peek()
	for _, w := range words {
		if t == w {
			p.pos++
			return true
		}
	}
	return false
}

func (p *textParser) parse() error {
	if err := p.parseHead(); err != nil {
		return err
	}
	for p.peek() != "" {
		if err := p.parseModifier(); err != nil {
			return err
		}
	}
	return nil
}

func (p *textParser) parseHead() error {
	t := p.next()
	if f, ok := adverbs[t]; ok {
		p.rule.Freq = f
		return nil
	}
	if t != "every" {
		return fmt.Errorf("expected \"every\", got %q", t)
	}

	switch t := p.peek(); {
	case t == "weekday" || t == "weekdays":
		p.pos++
		p.rule.Freq = rrule.WEEKLY
		p.rule.Weekdays = append([]rrule.Weekday(nil), workWeek...)
		return nil
	case t == "weekend" || t == "weekends":
		p.pos++
		p.rule.Freq = rrule.WEEKLY
		p.rule.Weekdays = append([]rrule.Weekday(nil), weekend...)
		return nil
	case isWeekday(t):
		days, err := p.parseWeekdayList()
		if err != nil {
			return err
		}
		p.rule.Freq = rrule.WEEKLY
		p.rule.Weekdays = days
		return nil
	}

	if p.accept("other") {
		p.rule.Interval = 2
	} else if n, err := strconv.Atoi(p.peek()); err == nil {
		if n < 1 {
			return fmt.Errorf("interval must be positive, got %d", n)
		}
		p.pos++
		p.rule.Interval = n
	}

	unit := p.next()
	f, ok := unitWords[unit]
	if !ok {
		return fmt.Errorf("unknown unit %q", unit)
	}
	p.rule.Freq = f
	return nil
}

func (p *textParser) parseModifier() error {
	switch t := p.next(); t {
	case "on":
		return p.parseOn()
	case "in":
		months, err := p.parseMonthList()
		if err != nil {
			return err
		}
		p.rule.Months = append(p.rule.Months, months...)
		return nil
	case "for":
		n, err := strconv.Atoi(p.next())
		if err != nil || n < 1 {
			return fmt.Errorf("expected a positive count after \"for\"")
		}
		if !p.accept("time", "times") {
			return fmt.Errorf("expected \"times\" after count")
		}
		p.rule.Count = n
		return nil
	case "until":
		rest := strings.Join(p.toks[p.pos:], " ")
		p.pos = len(p.toks)
		d, err := parseUntil(rest)
		if err != nil {
			return err
		}
		p.rule.UntilDate = d
		return nil
	case "the":
		return p.parseOrdinals()
	case ",", "and":
		return nil
	default:
		// "on the first monday and third friday" continues after "and".
		if isOrdinal(t) {
			p.pos--
			return p.parseOrdinals()
		}
		return fmt.Errorf("unexpected %q", t)
	}
}

func (p *textParser) parseOn() error {
	switch t := p.peek(); {
	case t == "weekday" || t == "weekdays":
		p.pos++
		p.rule.Weekdays = append(p.rule.Weekdays, workWeek...)
		return nil
	case t == "weekend" || t == "weekends":
		p.pos++
		p.rule.Weekdays = append(p.rule.Weekdays, weekend...)
		return nil
	case isWeekday(t):
		days, err := p.parseWeekdayList()
		if err != nil {
			return err
		}
		p.rule.Weekdays = append(p.rule.Weekdays, days...)
		return nil
	case t == "the":
		p.pos++
		return p.parseOrdinals()
	}
	return fmt.Errorf("unexpected %q after \"on\"", p.peek())
}

// parseOrdinals handles "the 1st and 15th", "the last day",
// "the first monday" and "the 2nd and 4th tuesday".
func (p *textParser) parseOrdinals() error {
	var nums []int
	for {
		n, ok := p.parseOrdinal()
		if !ok {
			break
		}
		nums = append(nums, n)
		if !p.listSeparator() {
			break
		}
	}
	if len(nums) == 0 {
		return fmt.Errorf("expected an ordinal after \"the\"")
	}

	switch t := p.peek(); {
	case isWeekday(t):
		p.pos++
		wd, _ := weekdayOf(t)
		for _, n := range nums {
			if n == 0 || n > 53 || n < -53 {
				return fmt.Errorf("ordinal %d out of range", n)
			}
			p.rule.Weekdays = append(p.rule.Weekdays, wd.Nth(n))
		}
		return nil
	case t == "day":
		p.pos++
	}
	for _, n := range nums {
		if n == 0 || n > 31 || n < -31 {
			return fmt.Errorf("day of month %d out of range", n)
		}
	}
	p.rule.MonthDays = append(p.rule.MonthDays, nums...)
	return nil
}

// parseOrdinal reads "1st", "first", "last" or "2nd last".
func (p *textParser) parseOrdinal() (int, bool) {
	t := p.peek()
	n, ok := ordinalWords[t]
	if !ok {
		n, ok = ordinalNumber(t)
	}
	if !ok {
		return 0, false
	}
	p.pos++
	if n > 0 && p.accept("last") {
		n = -n
	}
	return n, true
}

func ordinalNumber(t string) (int, bool) {
	for _, suffix := range []string{"st", "nd", "rd", "th"} {
		if digits, ok := strings.CutSuffix(t, suffix); ok {
			n, err := strconv.Atoi(digits)
			return n, err == nil
		}
	}
	return 0, false
}

// listSeparator consumes ",", "and" or ", and" when the next token
// continues the current list. Otherwise it consumes nothing, so that
// "on monday, for 3 times" keeps the comma out of the weekday list.
func (p *textParser) listSeparator() bool {
	save := p.pos
	consumed := false
	for p.accept(",", "and") {
		consumed = true
	}
	if consumed {
		if t := p.peek(); isWeekday(t) || isMonth(t) || isOrdinal(t) {
			return true
		}
	}
	p.pos = save
	return false
}

func (p *textParser) parseWeekdayList() ([]rrule.Weekday, error) {
	var days []rrule.Weekday
	for {
		t := p.next()
		wd, ok := weekdayOf(t)
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", t)
		}
		days = append(days, wd)
		if !p.listSeparator() {
			return days, nil
		}
	}
}

func (p *textParser) parseMonthList() ([]int, error) {
	var months []int
	for {
		t := p.next()
		m, ok := monthOf(t)
		if !ok {
			return nil, fmt.Errorf("unknown month %q", t)
		}
		months = append(months, int(m))
		if !p.listSeparator() {
			return months, nil
		}
	}
}

// weekdayOf accepts names, abbreviations and plurals ("mondays").
func weekdayOf(t string) (rrule.Weekday, bool) {
	if wd, ok := weekdayWords[t]; ok {
		return wd, true
	}
	if base, ok := strings.CutSuffix(t, "days"); ok {
		wd, ok := weekdayWords[base+"day"]
		return wd, ok
	}
	return rrule.Weekday{}, false
}

func isWeekday(t string) bool {
	_, ok := weekdayOf(t)
	return ok
}

func isOrdinal(t string) bool {
	if _, ok := ordinalWords[t]; ok {
		return true
	}
	_, ok := ordinalNumber(t)
	return ok
}

func isMonth(t string) bool {
	_, ok := monthOf(t)
	return ok
}

func monthOf(t string) (time.Month, bool) {
	if len(t) < 3 {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		name := strings.ToLower(m.String())
		if strings.HasPrefix(name, t) {
			return m, true
		}
	}
	return 0, false
}

var untilLayouts = []string{
	time.DateOnly,
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// parseUntil reads the date of an "until" clause. The tokenizer padded
// commas with spaces, so they are folded back before parsing.
func parseUntil(s string) (model.Date, error) {
	s = strings.ReplaceAll(s, " , ", ", ")
	s = strings.TrimSuffix(strings.TrimSpace(s), " ,")
	for _, layout := range untilLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
		}
	}
	return model.Date{}, fmt.Errorf("unrecognized until date %q", s)
}
