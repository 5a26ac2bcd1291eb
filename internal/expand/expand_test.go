package expand

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobcal/internal/model"
)

func zone(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

// wallDiff is end - start measured on local wall-clock fields.
func wallDiff(start, end time.Time, loc *time.Location) time.Duration {
	s, e := start.In(loc), end.In(loc)
	cs := time.Date(s.Year(), s.Month(), s.Day(), s.Hour(), s.Minute(), s.Second(), 0, time.UTC)
	ce := time.Date(e.Year(), e.Month(), e.Day(), e.Hour(), e.Minute(), e.Second(), 0, time.UTC)
	return ce.Sub(cs)
}

func TestMaterialize_SpringForward(t *testing.T) {
	ny := zone(t, "America/New_York")
	start := time.Date(2024, 3, 10, 1, 0, 0, 0, ny)

	s, e, err := Materialize(start, model.Length{Hours: 2}, ny)
	require.NoError(t, err)
	assert.True(t, s.Equal(start))
	assert.Equal(t, time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC), e.UTC())
	assert.Equal(t, 3, e.In(ny).Hour())
	assert.Equal(t, time.Hour, e.Sub(s))
	assert.Equal(t, 2*time.Hour, wallDiff(s, e, ny))
}

func TestMaterialize_FallBack(t *testing.T) {
	ny := zone(t, "America/New_York")
	start := time.Date(2024, 11, 3, 4, 30, 0, 0, time.UTC) // 00:30 EDT

	s, e, err := Materialize(start, model.Length{Hours: 2}, ny)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 11, 3, 7, 30, 0, 0, time.UTC), e.UTC())
	assert.Equal(t, 3*time.Hour, e.Sub(s))
	assert.Equal(t, 2*time.Hour, wallDiff(s, e, ny))
}

func TestMaterialize_CrossesMidnight(t *testing.T) {
	berlin := zone(t, "Europe/Berlin")
	start := time.Date(2024, 6, 1, 22, 15, 0, 0, berlin)

	_, e, err := Materialize(start, model.Length{Hours: 3, Minutes: 50}, berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 2, 2, 5, 0, 0, berlin), e)
}

func TestMaterialize_InvalidLength(t *testing.T) {
	start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for _, l := range []model.Length{{}, {Hours: -1}, {Minutes: -5}, {Minutes: 60}} {
		_, _, err := Materialize(start, l, time.UTC)
		require.ErrorIs(t, err, model.ErrInvalidDuration, l.String())
	}
}

func standup() model.Activity {
	return model.Activity{
		ID:    "standup",
		Name:  "Standup",
		Theme: model.Theme{BackgroundColor: "#fde68a", TextColor: "#1f2937"},
		Schedule: []model.ScheduleEntry{{
			Timezone: "America/New_York",
			Start:    "09:00",
			Duration: "00:30",
			RRule:    "every weekday",
		}},
	}
}

func TestExpand_StandupExample(t *testing.T) {
	ny := zone(t, "America/New_York")
	w, err := model.NewWindow(
		time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	res := Expand([]model.Activity{standup()}, w, Options{})
	require.Empty(t, res.Diagnostics)
	require.Len(t, res.Occurrences, 2)

	first, second := res.Occurrences[0], res.Occurrences[1]
	assert.Equal(t, time.Date(2024, 3, 8, 14, 0, 0, 0, time.UTC), first.Start)
	assert.Equal(t, time.Date(2024, 3, 11, 13, 0, 0, 0, time.UTC), second.Start)
	for _, occ := range res.Occurrences {
		assert.Equal(t, 9, occ.Start.In(ny).Hour())
		assert.Equal(t, 30*time.Minute, occ.End.Sub(occ.Start))
		assert.Equal(t, "Standup", occ.Title)
		assert.Equal(t, "/mobs/standup.html", occ.URL)
		assert.Equal(t, "#fde68a", occ.BackgroundColor)
		assert.Equal(t, "#1f2937", occ.TextColor)
		assert.Equal(t, "standup", occ.ActivityID)
		assert.True(t, w.Contains(occ.Start))
	}
}

func TestExpand_FailingEntriesBecomeDiagnostics(t *testing.T) {
	a := standup()
	a.Schedule = append(a.Schedule,
		model.ScheduleEntry{Timezone: "Nowhere/Imaginary", Start: "10:00", Duration: "01:00", RRule: "every day"},
		model.ScheduleEntry{Timezone: "UTC", Start: "10:00", Duration: "01:00", RRule: "every blue moon"},
		model.ScheduleEntry{Timezone: "UTC", Start: "10:00", Duration: "00:00", RRule: "every day"},
		model.ScheduleEntry{Timezone: "UTC", Start: "25:00", Duration: "01:00", RRule: "every day"},
		model.ScheduleEntry{Timezone: "UTC", Start: "10:00", Duration: "01:00", RRule: "every day", StartDate: "2024-13-01"},
	)
	other := model.Activity{
		ID:   "other",
		Name: "Other",
		Schedule: []model.ScheduleEntry{
			{Timezone: "UTC", Start: "12:00", Duration: "01:00", RRule: "every day"},
		},
	}
	w, err := model.NewWindow(
		time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	res := Expand([]model.Activity{a, other}, w, Options{Workers: 3})

	kinds := make([]string, 0, len(res.Diagnostics))
	for _, d := range res.Diagnostics {
		assert.Equal(t, "standup", d.ActivityID)
		assert.NotEmpty(t, d.Message)
		kinds = append(kinds, d.Kind)
	}
	assert.Equal(t, []string{
		"UnknownTimeZoneError",
		"InvalidRuleError",
		"InvalidDurationError",
		"InvalidTimeOfDayError",
		"InvalidRuleError",
	}, kinds)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, []int{
		res.Diagnostics[0].EntryIndex, res.Diagnostics[1].EntryIndex, res.Diagnostics[2].EntryIndex,
		res.Diagnostics[3].EntryIndex, res.Diagnostics[4].EntryIndex,
	})

	// Two standups plus four daily "other" occurrences still come through.
	require.Len(t, res.Occurrences, 6)
	for i := 1; i < len(res.Occurrences); i++ {
		assert.False(t, res.Occurrences[i].Start.Before(res.Occurrences[i-1].Start))
	}
}

func TestExpand_NoValidEntries(t *testing.T) {
	a := model.Activity{ID: "broken", Name: "Broken", Schedule: []model.ScheduleEntry{
		{Timezone: "Nowhere/Imaginary", Start: "10:00", Duration: "01:00", RRule: "every day"},
	}}
	res := Expand([]model.Activity{a}, model.DefaultWindow(time.Now()), Options{})
	assert.NotNil(t, res.Occurrences)
	assert.Empty(t, res.Occurrences)
	require.Len(t, res.Diagnostics, 1)
	assert.Equal(t, "UnknownTimeZoneError", res.Diagnostics[0].Kind)

	res = Expand(nil, model.DefaultWindow(time.Now()), Options{})
	assert.Empty(t, res.Occurrences)
	assert.Empty(t, res.Diagnostics)
}

func TestExpand_OrderAndTies(t *testing.T) {
	mk := func(id, zone, start string) model.Activity {
		return model.Activity{ID: id, Name: id, Schedule: []model.ScheduleEntry{
			{Timezone: zone, Start: start, Duration: "01:00", RRule: "every day"},
		}}
	}
	// 10:00 Berlin (CET) and 09:00 UTC are the same instant in winter.
	cat := []model.Activity{
		mk("late", "UTC", "18:00"),
		mk("berlin", "Europe/Berlin", "10:00"),
		mk("utc", "UTC", "09:00"),
	}
	w, err := model.NewWindow(
		time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 10, 23, 59, 59, 0, time.UTC),
	)
	require.NoError(t, err)

	res := Expand(cat, w, Options{Workers: 8})
	require.Len(t, res.Occurrences, 3)
	assert.Equal(t, "berlin", res.Occurrences[0].ActivityID)
	assert.Equal(t, "utc", res.Occurrences[1].ActivityID)
	assert.Equal(t, "late", res.Occurrences[2].ActivityID)
	assert.True(t, res.Occurrences[0].Start.Equal(res.Occurrences[1].Start))
}

func TestExpand_Deterministic(t *testing.T) {
	cat := []model.Activity{standup(), {
		ID:   "night",
		Name: "Night Owls",
		Schedule: []model.ScheduleEntry{
			{Timezone: "Asia/Tokyo", Start: "22:00", Duration: "03:00", RRule: "every 2 weeks on friday and saturday"},
			{Timezone: "Europe/London", Start: "07:15", Duration: "00:45", RRule: "FREQ=MONTHLY;BYDAY=1MO"},
		},
	}}
	now := time.Date(2024, 10, 14, 8, 0, 0, 0, time.UTC)

	a, err := json.Marshal(Expand(cat, model.DefaultWindow(now), Options{}))
	require.NoError(t, err)
	b, err := json.Marshal(Expand(cat, model.DefaultWindow(now), Options{Workers: 1}))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestExpand_DurationIsWallClockStableAcrossDST(t *testing.T) {
	ny := zone(t, "America/New_York")
	a := model.Activity{ID: "late-night", Name: "Late Night", Schedule: []model.ScheduleEntry{
		{Timezone: "America/New_York", Start: "01:00", Duration: "02:00", RRule: "every day"},
	}}
	w, err := model.NewWindow(
		time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 13, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	res := Expand([]model.Activity{a}, w, Options{})
	require.Empty(t, res.Diagnostics)
	require.Len(t, res.Occurrences, 5)

	sawShortDay := false
	for _, occ := range res.Occurrences {
		assert.Equal(t, 2*time.Hour, wallDiff(occ.Start, occ.End, ny), occ.Start)
		if occ.End.Sub(occ.Start) == time.Hour {
			sawShortDay = true
			assert.Equal(t, 10, occ.Start.In(ny).Day())
		}
	}
	assert.True(t, sawShortDay, "spring-forward night lasts one elapsed hour")
}

func TestExpand_URLTemplate(t *testing.T) {
	a := standup()
	a.ID = "team a"
	w, err := model.NewWindow(
		time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)

	res := Expand([]model.Activity{a}, w, Options{URLTemplate: "https://mob.example/{id}"})
	require.Len(t, res.Occurrences, 1)
	assert.Equal(t, "https://mob.example/team%20a", res.Occurrences[0].URL)
}
