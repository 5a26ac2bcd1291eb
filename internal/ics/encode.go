package ics

import (
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"mobcal/internal/model"
)

// ProductID is written to PRODID of every exported calendar.
const ProductID = "-//mobcal//occurrence feed//EN"

// Extension properties carrying the activity theme. COLOR is RFC 7986;
// text colour has no standard property.
const (
	propColor     = ical.ComponentProperty("COLOR")
	propTextColor = ical.ComponentProperty("X-MOBCAL-TEXT-COLOR")
	propActivity  = ical.ComponentProperty("X-MOBCAL-ACTIVITY")
)

// UID derives a stable event identifier from the activity, the schedule
// entry and the UTC start instant, so re-exporting the same window yields
// the same UIDs.
func UID(occ model.Occurrence) string {
	return occ.ActivityID + "-" + strconv.Itoa(occ.EntryIndex) + "-" +
		occ.Start.UTC().Format("20060102T150405Z") + "@mobcal"
}

// Encode renders occurrences as an iCalendar feed named name. stamp is
// used as DTSTAMP on every event.
func Encode(name string, occurrences []model.Occurrence, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if strings.TrimSpace(name) != "" {
		cal.SetName(name)
		cal.SetXWRCalName(name)
	}

	for _, occ := range occurrences {
		ev := cal.AddEvent(UID(occ))
		ev.SetDtStampTime(stamp.UTC())
		ev.SetStartAt(occ.Start.UTC())
		ev.SetEndAt(occ.End.UTC())
		ev.SetSummary(occ.Title)
		ev.SetProperty(propActivity, occ.ActivityID)
		if occ.URL != "" {
			ev.SetURL(occ.URL)
		}
		if occ.BackgroundColor != "" {
			ev.SetProperty(propColor, occ.BackgroundColor)
		}
		if occ.TextColor != "" {
			ev.SetProperty(propTextColor, occ.TextColor)
		}
	}
	return cal.Serialize()
}
