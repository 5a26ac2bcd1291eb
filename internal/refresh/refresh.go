package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rdleal/intervalst/interval"
	"github.com/robfig/cron/v3"

	"mobcal/internal/catalogue"
	"mobcal/internal/expand"
	appLog "mobcal/internal/log"
	"mobcal/internal/model"
)

// Snapshot is one evaluation of the catalogue. It is read-only once built.
type Snapshot struct {
	GeneratedAt time.Time
	Window      model.Window
	Result      expand.Result

	// occurrences by [Start, End]; values are positions in
	// Result.Occurrences, several when activities share a span
	index *interval.SearchTree[[]int, time.Time]
}

// NewSnapshot wraps an expansion result and indexes its occurrences.
func NewSnapshot(generatedAt time.Time, w model.Window, res expand.Result) *Snapshot {
	s := &Snapshot{
		GeneratedAt: generatedAt.UTC(),
		Window:      w,
		Result:      res,
		index:       interval.NewSearchTree[[]int](func(x, y time.Time) int { return x.Compare(y) }),
	}

	type span struct{ start, end time.Time }
	groups := make(map[span][]int)
	order := make([]span, 0, len(res.Occurrences))
	for i, occ := range res.Occurrences {
		k := span{occ.Start.UTC(), occ.End.UTC()}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}
	for _, k := range order {
		if err := s.index.Insert(k.start, k.end, groups[k]); err != nil {
			appLog.Warn("occurrences not indexed", "start", k.start.Format(time.RFC3339), "err", err)
		}
	}
	return s
}

// During returns the occurrences overlapping the half-open range
// [from, to), in start order.
func (s *Snapshot) During(from, to time.Time) []model.Occurrence {
	out := make([]model.Occurrence, 0)
	if s.index == nil || !from.Before(to) {
		return out
	}
	hits, ok := s.index.AllIntersections(from, to)
	if !ok {
		return out
	}
	var idx []int
	for _, h := range hits {
		idx = append(idx, h...)
	}
	sort.Ints(idx)
	for _, i := range idx {
		occ := s.Result.Occurrences[i]
		// The tree matches closed intervals; drop those only touching the edges.
		if occ.Start.Before(to) && occ.End.After(from) {
			out = append(out, occ)
		}
	}
	return out
}

// Options configures a Refresher.
type Options struct {
	// Source is a catalogue path or http(s) URL.
	Source string
	// Fetcher serves remote sources; may be nil for local paths.
	Fetcher *catalogue.Fetcher
	// BackfillDays and HorizonDays size the window around now; zero
	// values use the model defaults.
	BackfillDays int
	HorizonDays  int
	Expand       expand.Options
	// Now is the clock. Nil means time.Now.
	Now func() time.Time
}

// Refresher keeps the latest Snapshot of the catalogue. A failed refresh
// keeps the previous snapshot.
type Refresher struct {
	opts Options

	mu     sync.RWMutex
	latest *Snapshot
}

// New creates a Refresher. No evaluation happens until Refresh or Run.
func New(opts Options) *Refresher {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.BackfillDays <= 0 {
		opts.BackfillDays = model.DefaultBackfillDays
	}
	if opts.HorizonDays <= 0 {
		opts.HorizonDays = model.DefaultHorizonDays
	}
	return &Refresher{opts: opts}
}

// Refresh loads the catalogue and expands it against the window around
// now.
func (r *Refresher) Refresh(ctx context.Context) (*Snapshot, error) {
	activities, err := catalogue.Open(ctx, r.opts.Source, r.opts.Fetcher)
	if err != nil {
		return nil, err
	}

	now := r.opts.Now()
	w, err := model.WindowAround(now, r.opts.BackfillDays, r.opts.HorizonDays)
	if err != nil {
		return nil, err
	}
	snap := NewSnapshot(now, w, expand.Expand(activities, w, r.opts.Expand))

	r.mu.Lock()
	r.latest = snap
	r.mu.Unlock()

	appLog.Info("catalogue refreshed",
		"activities", len(activities),
		"occurrences", len(snap.Result.Occurrences),
		"diagnostics", len(snap.Result.Diagnostics),
		"lower", w.Lower().Format(time.RFC3339),
		"upper", w.Upper().Format(time.RFC3339),
	)
	return snap, nil
}

// Latest returns the most recent successful snapshot, or nil.
func (r *Refresher) Latest() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Run refreshes once immediately and then on the given cron schedule until
// ctx is canceled. Scheduled failures are logged and keep the previous
// snapshot.
func (r *Refresher) Run(ctx context.Context, schedule string) error {
	if schedule == "" {
		return errors.New("refresh schedule is empty")
	}
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("refresh schedule %q: %w", schedule, err)
	}

	if _, err := r.Refresh(ctx); err != nil {
		appLog.Error("initial refresh failed", err, "source", r.opts.Source)
	}

	c := cron.New()
	c.Schedule(sched, cron.FuncJob(func() {
		if _, err := r.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err, "source", r.opts.Source)
		}
	}))
	c.Start()
	appLog.Info("refresh scheduler started", "schedule", schedule)

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("refresh scheduler stopped")
	return nil
}
