package expand

import (
	"fmt"
	"net/url"
	"runtime"
	"sort"
	"strings"
	"sync"

	appLog "mobcal/internal/log"
	"mobcal/internal/model"
	"mobcal/internal/recur"
)

// DefaultURLTemplate links an occurrence to its activity page; "{id}" is
// replaced with the path-escaped activity ID.
const DefaultURLTemplate = "/mobs/{id}.html"

// Options controls catalogue expansion.
type Options struct {
	// URLTemplate builds the occurrence URL. Empty means DefaultURLTemplate.
	URLTemplate string
	// Workers bounds the number of entries evaluated concurrently.
	// Zero or negative means GOMAXPROCS.
	Workers int
}

// Result is the outcome of one expansion run. Occurrences are ordered by
// start; entries that failed are reported in Diagnostics in catalogue
// order.
type Result struct {
	Occurrences []model.Occurrence
	Diagnostics []model.Diagnostic
}

type entryRef struct {
	activity *model.Activity
	index    int
}

type entryResult struct {
	occurrences []model.Occurrence
	err         error
}

// Expand evaluates every schedule entry of activities against the shared
// window w. Entries are independent and evaluated in parallel; a failing
// entry becomes a Diagnostic and never stops the others.
func Expand(activities []model.Activity, w model.Window, opts Options) Result {
	tmpl := opts.URLTemplate
	if tmpl == "" {
		tmpl = DefaultURLTemplate
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	refs := make([]entryRef, 0)
	for i := range activities {
		for j := range activities[i].Schedule {
			refs = append(refs, entryRef{activity: &activities[i], index: j})
		}
	}
	if workers > len(refs) {
		workers = len(refs)
	}

	// Each worker writes only its own slots, so no locking is needed.
	results := make([]entryResult, len(refs))
	next := make(chan int)
	var wg sync.WaitGroup
	for n := 0; n < workers; n++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				occ, err := ExpandEntry(refs[i].activity, refs[i].index, w, tmpl)
				results[i] = entryResult{occurrences: occ, err: err}
			}
		}()
	}
	for i := range refs {
		next <- i
	}
	close(next)
	wg.Wait()

	out := Result{
		Occurrences: make([]model.Occurrence, 0),
		Diagnostics: make([]model.Diagnostic, 0),
	}
	for i, res := range results {
		if res.err != nil {
			ref := refs[i]
			d := model.Diagnostic{
				ActivityID: ref.activity.ID,
				EntryIndex: ref.index,
				Kind:       model.ErrorKind(res.err),
				Message:    res.err.Error(),
			}
			appLog.Warn("schedule entry skipped",
				"activity", d.ActivityID,
				"entry", d.EntryIndex,
				"kind", d.Kind,
				"reason", d.Message,
			)
			out.Diagnostics = append(out.Diagnostics, d)
			continue
		}
		out.Occurrences = append(out.Occurrences, res.occurrences...)
	}

	// Stable: equal starts keep catalogue order.
	sort.SliceStable(out.Occurrences, func(i, j int) bool {
		return out.Occurrences[i].Start.Before(out.Occurrences[j].Start)
	})

	appLog.Debug("catalogue expanded",
		"entries", len(refs),
		"occurrences", len(out.Occurrences),
		"diagnostics", len(out.Diagnostics),
	)
	return out
}

// ExpandEntry compiles and evaluates one schedule entry of a.
func ExpandEntry(a *model.Activity, index int, w model.Window, urlTemplate string) ([]model.Occurrence, error) {
	if index < 0 || index >= len(a.Schedule) {
		return nil, fmt.Errorf("activity %q has no schedule entry %d", a.ID, index)
	}
	e := a.Schedule[index]

	clock, err := model.ParseClock(e.Start)
	if err != nil {
		return nil, err
	}
	length, err := model.ParseLength(e.Duration)
	if err != nil {
		return nil, err
	}
	var from model.Date
	if strings.TrimSpace(e.StartDate) != "" {
		if from, err = model.ParseDate(e.StartDate); err != nil {
			return nil, fmt.Errorf("%w: %v", model.ErrInvalidRule, err)
		}
	}

	g, err := recur.CompileOn(e.RRule, e.Timezone, clock, from)
	if err != nil {
		return nil, err
	}
	starts, err := recur.Evaluate(g, w)
	if err != nil {
		return nil, err
	}

	link := strings.ReplaceAll(urlTemplate, "{id}", url.PathEscape(a.ID))
	out := make([]model.Occurrence, 0, len(starts))
	for _, st := range starts {
		start, end, err := Materialize(st, length, g.Location())
		if err != nil {
			return nil, err
		}
		out = append(out, model.Occurrence{
			ActivityID:      a.ID,
			EntryIndex:      index,
			Title:           a.Name,
			URL:             link,
			BackgroundColor: a.Theme.BackgroundColor,
			TextColor:       a.Theme.TextColor,
			Start:           start.UTC(),
			End:             end.UTC(),
		})
	}
	return out, nil
}
