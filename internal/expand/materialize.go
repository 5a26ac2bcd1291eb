package expand

import (
	"time"

	"mobcal/internal/model"
)

// Materialize computes the end of an occurrence starting at start by adding
// length to the local wall-clock fields in loc.
//
// The result keeps the configured wall-clock length across DST
// transitions: a 2h entry starting at 01:00 on a spring-forward night ends
// at 03:00 local, one hour of elapsed time later. When the local end time
// falls into a DST gap it is normalized by time.Date.
func Materialize(start time.Time, length model.Length, loc *time.Location) (time.Time, time.Time, error) {
	if err := length.Validate(); err != nil {
		return time.Time{}, time.Time{}, err
	}
	local := start.In(loc)
	end := time.Date(
		local.Year(), local.Month(), local.Day(),
		local.Hour()+length.Hours, local.Minute()+length.Minutes, local.Second(), local.Nanosecond(),
		loc,
	)
	// Inside a fall-back overlap the wall-clock end may resolve to the
	// earlier offset and land before start; fall back to elapsed time.
	if !end.After(local) {
		end = local.Add(time.Duration(length.Hours)*time.Hour + time.Duration(length.Minutes)*time.Minute)
	}
	return local, end, nil
}
