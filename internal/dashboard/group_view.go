package dashboard

import (
	"context"
	"strings"
	"time"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

// GroupFetcher loads the raw data behind a user's group view.
type GroupFetcher interface {
	FetchGroupForUser(ctx context.Context, username string, date time.Time) (GroupData, error)
}

// GroupContext identifies what a group screen is showing.
type GroupContext struct {
	Username string
	Date     time.Time
	Mode     metrics.Mode
}

// SameData reports whether both contexts need the same group data.
func (c GroupContext) SameData(other GroupContext) bool {
	return strings.EqualFold(c.Username, other.Username) && metrics.Day(c.Date).Equal(metrics.Day(other.Date))
}

// LoadGroup shows gc on the view's group screen with the same rules as Load:
// a mode change recomputes from the committed data, a newer LoadGroup makes
// this one return ErrStaleLoad. The view's fetcher must implement
// GroupFetcher, otherwise ErrNoDirectory is returned.
func (v *View) LoadGroup(ctx context.Context, gc GroupContext) (GroupReport, error) {
	fetcher, ok := v.fetcher.(GroupFetcher)
	if !ok {
		return GroupReport{}, ErrNoDirectory
	}
	gc.Date = metrics.Day(gc.Date)
	gen := v.groupGeneration.Add(1)

	v.mu.Lock()
	reuse := v.groupLoaded && v.groupCurrent.SameData(gc)
	data := v.groupData
	v.mu.Unlock()

	if !reuse {
		fetched, err := fetcher.FetchGroupForUser(ctx, gc.Username, gc.Date)
		if err != nil {
			if v.groupGeneration.Load() != gen {
				return GroupReport{}, ErrStaleLoad
			}
			return GroupReport{}, err
		}
		data = fetched
	}
	report := ComputeGroup(data, gc.Mode)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.groupGeneration.Load() != gen {
		return GroupReport{}, ErrStaleLoad
	}
	v.groupLoaded = true
	v.groupCurrent = gc
	v.groupData = data
	return report, nil
}
