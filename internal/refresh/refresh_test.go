package refresh

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mobcal/internal/expand"
	"mobcal/internal/model"
)

const catalogueYAML = `
- id: standup
  name: Standup
  schedule:
    - timezone: America/New_York
      start: "09:00"
      duration: "00:30"
      rrule: every weekday
    - timezone: Mars/Olympus
      start: "09:00"
      duration: "00:30"
      rrule: every day
`

func writeCatalogue(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRefresh_UsesInjectedClock(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	r := New(Options{
		Source:       writeCatalogue(t, catalogueYAML),
		BackfillDays: 1,
		HorizonDays:  7,
		Now:          func() time.Time { return now },
	})
	assert.Nil(t, r.Latest())

	snap, err := r.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now, snap.GeneratedAt)
	assert.Equal(t, now.Add(-24*time.Hour), snap.Window.Lower())
	assert.Equal(t, now.Add(7*24*time.Hour), snap.Window.Upper())

	// Mon Mar 4 to Fri Mar 8 at 14:00Z; Mar 11 (13:00Z) is after the upper bound.
	assert.Len(t, snap.Result.Occurrences, 5)
	require.Len(t, snap.Result.Diagnostics, 1)
	assert.Equal(t, "UnknownTimeZoneError", snap.Result.Diagnostics[0].Kind)
	assert.Same(t, snap, r.Latest())
}

func TestRefresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	path := writeCatalogue(t, catalogueYAML)
	r := New(Options{Source: path})

	first, err := r.Refresh(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("- id: [broken"), 0o600))
	_, err = r.Refresh(context.Background())
	require.Error(t, err)
	assert.Same(t, first, r.Latest())
}

func TestRun_RefreshesImmediatelyAndStops(t *testing.T) {
	r := New(Options{Source: writeCatalogue(t, catalogueYAML)})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, "*/15 * * * *") }()

	require.Eventually(t, func() bool { return r.Latest() != nil }, 5*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_InvalidScheduleDoesNotRefresh(t *testing.T) {
	r := New(Options{Source: writeCatalogue(t, catalogueYAML)})
	require.Error(t, r.Run(context.Background(), "not a schedule"))
	require.Error(t, r.Run(context.Background(), ""))
	assert.Nil(t, r.Latest(), "no snapshot is published for a rejected schedule")
}

func TestSnapshot_During(t *testing.T) {
	at := func(day, hour int) time.Time { return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC) }
	occ := func(id string, day, from, to int) model.Occurrence {
		return model.Occurrence{ActivityID: id, Start: at(day, from), End: at(day, to)}
	}
	w, err := model.NewWindow(at(1, 0), at(31, 0))
	require.NoError(t, err)
	snap := NewSnapshot(at(1, 0), w, expand.Result{Occurrences: []model.Occurrence{
		occ("a", 4, 9, 10),
		occ("b", 4, 9, 10), // same span as a
		occ("c", 4, 9, 12),
		occ("d", 4, 13, 14),
		occ("e", 5, 9, 10),
	}})

	ids := func(occs []model.Occurrence) []string {
		out := make([]string, 0, len(occs))
		for _, o := range occs {
			out = append(out, o.ActivityID)
		}
		return out
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids(snap.During(at(4, 9), at(4, 10))))
	assert.Equal(t, []string{"c"}, ids(snap.During(at(4, 10), at(4, 13))), "touching edges do not overlap")
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(snap.During(at(1, 0), at(31, 0))))
	assert.Empty(t, snap.During(at(6, 0), at(7, 0)))
	assert.Empty(t, snap.During(at(4, 12), at(4, 9)))
}
