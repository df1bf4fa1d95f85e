package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

// ErrNoDirectory is returned when a group load by username has no directory.
var ErrNoDirectory = errors.New("dashboard: pharmacy directory not configured")

// GroupEntry is one pharmacy's slot in a group view.
type GroupEntry struct {
	Pharmacy metrics.Pharmacy       `json:"pharmacy"`
	Snapshot metrics.MetricSnapshot `json:"snapshot"`
	Captions Captions               `json:"captions"`
	Failed   bool                   `json:"failed"`
}

// GroupSummary totals the portfolio over the pharmacies that loaded.
type GroupSummary struct {
	Turnover              decimal.Decimal     `json:"turnover"`
	ComparisonTurnover    decimal.Decimal     `json:"comparison_turnover"`
	TurnoverGrowthPercent decimal.NullDecimal `json:"turnover_growth_percent"`
	Target                decimal.Decimal     `json:"target"`
	Purchases             decimal.Decimal     `json:"purchases"`
	Loaded                int                 `json:"loaded"`
	Failed                int                 `json:"failed"`
}

// GroupReport holds every pharmacy's snapshot keyed by pharmacy id.
type GroupReport struct {
	Date    time.Time                `json:"date"`
	Mode    metrics.Mode             `json:"mode"`
	Period  metrics.ComparablePeriod `json:"period"`
	Entries map[int64]GroupEntry     `json:"entries"`
	Summary GroupSummary             `json:"summary"`
}

// Sorted lists entries by pharmacy name, then id.
func (g GroupReport) Sorted() []GroupEntry {
	out := make([]GroupEntry, 0, len(g.Entries))
	for _, entry := range g.Entries {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pharmacy.Name != out[j].Pharmacy.Name {
			return out[i].Pharmacy.Name < out[j].Pharmacy.Name
		}
		return out[i].Pharmacy.ID < out[j].Pharmacy.ID
	})
	return out
}

// GroupData is the raw material of a group view for one date. A mode change
// only needs ComputeGroup over the same data.
type GroupData struct {
	Date       time.Time
	Pharmacies []metrics.Pharmacy
	Datasets   map[int64]Dataset
	Failed     map[int64]bool
}

// FetchGroup loads every pharmacy's dataset in parallel. A pharmacy whose
// fetch fails is marked Failed; the batch itself never fails.
func (s *Service) FetchGroup(ctx context.Context, pharmacies []metrics.Pharmacy, date time.Time) GroupData {
	date = metrics.Day(date)
	data := GroupData{
		Date:       date,
		Pharmacies: pharmacies,
		Datasets:   make(map[int64]Dataset, len(pharmacies)),
		Failed:     make(map[int64]bool),
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, pharmacy := range pharmacies {
		g.Go(func() error {
			ds, err := s.Fetch(ctx, pharmacy.ID, date)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.logger.ErrorContext(ctx, "group pharmacy load failed",
					slog.Int64("pharmacy_id", pharmacy.ID),
					slog.String("pharmacy", pharmacy.Name),
					slog.String("date", metrics.FormatDate(date)),
					slog.Any("error", err),
				)
				data.Failed[pharmacy.ID] = true
				return nil
			}
			data.Datasets[pharmacy.ID] = ds
			return nil
		})
	}
	_ = g.Wait()

	if s.failures != nil {
		s.failures.AddGroupFailures(len(data.Failed))
	}
	return data
}

// ComputeGroup builds the group report for mode from fetched data. Failed
// pharmacies get a zero snapshot. It performs no I/O.
func ComputeGroup(data GroupData, mode metrics.Mode) GroupReport {
	report := GroupReport{
		Date:    data.Date,
		Mode:    mode,
		Period:  metrics.ResolvePeriod(data.Date, mode),
		Entries: make(map[int64]GroupEntry, len(data.Pharmacies)),
	}
	for _, pharmacy := range data.Pharmacies {
		entry := GroupEntry{Pharmacy: pharmacy}
		ds, ok := data.Datasets[pharmacy.ID]
		if data.Failed[pharmacy.ID] || !ok {
			entry.Snapshot = metrics.ZeroSnapshot()
			entry.Failed = true
		} else {
			card := Compute(ds, mode)
			entry.Snapshot = card.Snapshot
			entry.Captions = card.Captions
		}
		report.Entries[pharmacy.ID] = entry
	}
	report.Summary = summarise(report.Entries)
	return report
}

// Group fetches and computes a group view in one step.
func (s *Service) Group(ctx context.Context, pharmacies []metrics.Pharmacy, date time.Time, mode metrics.Mode) GroupReport {
	return ComputeGroup(s.FetchGroup(ctx, pharmacies, date), mode)
}

// FetchGroupForUser resolves username's portfolio and fetches it.
func (s *Service) FetchGroupForUser(ctx context.Context, username string, date time.Time) (GroupData, error) {
	if s.directory == nil {
		return GroupData{}, ErrNoDirectory
	}
	pharmacies, err := s.directory.Pharmacies(ctx, username)
	if err != nil {
		return GroupData{}, fmt.Errorf("dashboard: group %s: %w", username, err)
	}
	return s.FetchGroup(ctx, pharmacies, date), nil
}

// GroupForUser resolves username's portfolio and runs Group over it.
func (s *Service) GroupForUser(ctx context.Context, username string, date time.Time, mode metrics.Mode) (GroupReport, error) {
	data, err := s.FetchGroupForUser(ctx, username, date)
	if err != nil {
		return GroupReport{}, err
	}
	return ComputeGroup(data, mode), nil
}

func summarise(entries map[int64]GroupEntry) GroupSummary {
	var sum GroupSummary
	for _, entry := range entries {
		if entry.Failed {
			sum.Failed++
			continue
		}
		sum.Loaded++
		sum.Turnover = sum.Turnover.Add(entry.Snapshot.Turnover)
		sum.ComparisonTurnover = sum.ComparisonTurnover.Add(entry.Snapshot.ComparisonTurnover)
		sum.Target = sum.Target.Add(entry.Snapshot.Target)
		sum.Purchases = sum.Purchases.Add(entry.Snapshot.Purchases)
	}
	if sum.Turnover.IsPositive() && sum.ComparisonTurnover.IsPositive() {
		growth := sum.Turnover.Sub(sum.ComparisonTurnover).Div(sum.ComparisonTurnover).Mul(decimal.NewFromInt(100)).Round(2)
		sum.TurnoverGrowthPercent = decimal.NewNullDecimal(growth)
	}
	return sum
}
