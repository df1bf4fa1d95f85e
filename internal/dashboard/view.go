package dashboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

// LoadContext identifies what a screen is showing.
type LoadContext struct {
	PharmacyID int64        `json:"pharmacy_id"`
	Date       time.Time    `json:"date"`
	Mode       metrics.Mode `json:"mode"`
}

// Equal reports whether both contexts select the same card.
func (c LoadContext) Equal(other LoadContext) bool {
	return c.SameData(other) && c.Mode == other.Mode
}

// SameData reports whether both contexts need the same raw dataset.
func (c LoadContext) SameData(other LoadContext) bool {
	return c.PharmacyID == other.PharmacyID && metrics.Day(c.Date).Equal(metrics.Day(other.Date))
}

// Fetcher loads a dataset for a pharmacy and date.
type Fetcher interface {
	Fetch(ctx context.Context, pharmacyID int64, date time.Time) (Dataset, error)
}

// View holds one screen's committed state. Every Load takes a generation
// number; a load only commits while its generation is the latest, so a slow
// response for an old selection can never overwrite a newer one.
type View struct {
	fetcher         Fetcher
	generation      atomic.Uint64
	groupGeneration atomic.Uint64

	mu       sync.Mutex
	loaded   bool
	current  LoadContext
	dataset  Dataset
	report   Report
	lastSeen time.Time

	groupLoaded  bool
	groupCurrent GroupContext
	groupData    GroupData
}

// NewView returns an empty view backed by fetcher.
func NewView(fetcher Fetcher) *View {
	return &View{fetcher: fetcher}
}

// Load shows lc. An unchanged context returns the committed report; a mode
// change recomputes from the committed dataset; anything else refetches.
// ErrStaleLoad means a newer Load started while this one was in flight.
func (v *View) Load(ctx context.Context, lc LoadContext) (Report, error) {
	lc.Date = metrics.Day(lc.Date)
	gen := v.generation.Add(1)

	v.mu.Lock()
	if v.loaded && v.current.Equal(lc) {
		report := v.report
		v.mu.Unlock()
		return report, nil
	}
	reuse := v.loaded && v.current.SameData(lc)
	ds := v.dataset
	v.mu.Unlock()

	if !reuse {
		fetched, err := v.fetcher.Fetch(ctx, lc.PharmacyID, lc.Date)
		if err != nil {
			if v.generation.Load() != gen {
				return Report{}, ErrStaleLoad
			}
			return Report{}, err
		}
		ds = fetched
	}
	report := Compute(ds, lc.Mode)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.generation.Load() != gen {
		return Report{}, ErrStaleLoad
	}
	v.loaded = true
	v.current = lc
	v.dataset = ds
	v.report = report
	return report, nil
}

// Current returns the committed context and report.
func (v *View) Current() (LoadContext, Report, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current, v.report, v.loaded
}

func (v *View) touch(at time.Time) {
	v.mu.Lock()
	v.lastSeen = at
	v.mu.Unlock()
}

func (v *View) idleSince() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastSeen
}

// Views is an in-memory registry of screens keyed by view id.
type Views struct {
	fetcher Fetcher
	idle    time.Duration
	now     func() time.Time

	mu    sync.Mutex
	views map[string]*View
}

// NewViews creates a registry; views unused for idle are evicted.
func NewViews(fetcher Fetcher, idle time.Duration) *Views {
	return &Views{fetcher: fetcher, idle: idle, now: time.Now, views: make(map[string]*View)}
}

// Get returns the view for id, creating it when missing. An empty id gets a
// fresh random id, which is returned alongside the view.
func (vs *Views) Get(id string) (string, *View) {
	if id == "" {
		id = uuid.NewString()
	}
	vs.mu.Lock()
	defer vs.mu.Unlock()
	view, ok := vs.views[id]
	if !ok {
		view = NewView(vs.fetcher)
		vs.views[id] = view
	}
	view.touch(vs.now())
	return id, view
}

// Sweep evicts views idle for longer than the registry's idle limit and
// reports how many were removed.
func (vs *Views) Sweep() int {
	if vs.idle <= 0 {
		return 0
	}
	cutoff := vs.now().Add(-vs.idle)
	vs.mu.Lock()
	defer vs.mu.Unlock()
	removed := 0
	for id, view := range vs.views {
		if view.idleSince().Before(cutoff) {
			delete(vs.views, id)
			removed++
		}
	}
	return removed
}

// Len reports how many views are registered.
func (vs *Views) Len() int {
	vs.mu.Lock()
	defer vs.mu.Unlock()
	return len(vs.views)
}

// Run sweeps idle views every interval until ctx is done.
func (vs *Views) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 || vs.idle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			vs.Sweep()
		}
	}
}
