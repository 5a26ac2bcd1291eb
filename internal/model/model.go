package model

import "time"

// Theme is display styling passed through to occurrences untouched.
type Theme struct {
	BackgroundColor string `yaml:"bgColor" json:"bgColor"`
	TextColor       string `yaml:"textColor" json:"textColor"`
}

// Activity is one recurring activity of the catalogue (a mob, a meeting)
// with its list of schedule entries.
type Activity struct {
	ID       string          `yaml:"id" json:"id"`
	Name     string          `yaml:"name" json:"name"`
	Theme    Theme           `yaml:"theme" json:"theme"`
	Schedule []ScheduleEntry `yaml:"schedule" json:"schedule"`
}

// ScheduleEntry holds one recurrence of an activity as written in the
// catalogue. Fields are raw strings; their contents are validated when the
// entry is compiled, so a bad entry only affects itself.
type ScheduleEntry struct {
	// Timezone is an IANA zone identifier, e.g. "America/New_York".
	Timezone string `yaml:"timezone" json:"timezone"`
	// Start is the local time of day "HH:MM" at which occurrences begin.
	Start string `yaml:"start" json:"start"`
	// Duration is the wall-clock length "HH:MM" of each occurrence.
	Duration string `yaml:"duration" json:"duration"`
	// RRule is the recurrence rule, either RFC 5545 text
	// ("FREQ=WEEKLY;BYDAY=MO") or the natural form ("every weekday").
	RRule string `yaml:"rrule" json:"rrule"`
	// StartDate optionally anchors the rule at a local date "YYYY-MM-DD".
	// When empty the rule is anchored at the zone's local epoch date.
	StartDate string `yaml:"start_date,omitempty" json:"start_date,omitempty"`
}

// Occurrence is one concrete instance of an activity.
type Occurrence struct {
	ActivityID string
	EntryIndex int

	Title           string
	URL             string
	BackgroundColor string
	TextColor       string

	Start time.Time
	End   time.Time
}

// Diagnostic reports a schedule entry that could not be expanded.
type Diagnostic struct {
	ActivityID string `json:"activityId"`
	EntryIndex int    `json:"entryIndex"`
	Kind       string `json:"kind"`
	Message    string `json:"message"`
}
