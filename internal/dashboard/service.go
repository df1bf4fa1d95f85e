// Package dashboard runs the comparable-period pipeline for one pharmacy or
// a whole portfolio. It fans fetches out to the upstream stores, waits for
// them and hands the records to the pure metrics core.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

var (
	// ErrInvalidPharmacy is returned for non-positive pharmacy ids.
	ErrInvalidPharmacy = errors.New("dashboard: invalid pharmacy id")
	// ErrStaleLoad is returned when a newer load superseded this one.
	ErrStaleLoad = errors.New("dashboard: load superseded by a newer request")
)

// Store is the read side of the pharmacy API.
type Store interface {
	BusinessDays(ctx context.Context, pharmacyID int64, month metrics.Month) ([]metrics.BusinessDay, error)
	Targets(ctx context.Context, pharmacyID int64, month metrics.Month) ([]metrics.Target, error)
}

// Directory lists the pharmacies in a user's portfolio.
type Directory interface {
	Pharmacies(ctx context.Context, username string) ([]metrics.Pharmacy, error)
}

// FailureRecorder counts pharmacies that failed during a group load.
type FailureRecorder interface {
	AddGroupFailures(count int)
}

// Dataset is the raw material for one pharmacy and selected date. It covers
// both daily and monthly modes, so switching mode never refetches.
type Dataset struct {
	PharmacyID int64                 `json:"pharmacy_id"`
	Date       time.Time             `json:"date"`
	Current    []metrics.BusinessDay `json:"current"`
	Prior      []metrics.BusinessDay `json:"prior"`
	Targets    []metrics.Target      `json:"targets"`
}

// Report is one pharmacy's computed card.
type Report struct {
	PharmacyID int64                    `json:"pharmacy_id"`
	Date       time.Time                `json:"date"`
	Mode       metrics.Mode             `json:"mode"`
	Period     metrics.ComparablePeriod `json:"period"`
	Snapshot   metrics.MetricSnapshot   `json:"snapshot"`
	Captions   Captions                 `json:"captions"`
}

// Service coordinates fetches with the metrics core.
type Service struct {
	store       Store
	directory   Directory
	logger      *slog.Logger
	concurrency int
	failures    FailureRecorder
}

// Option customises the service.
type Option func(*Service)

// WithDirectory enables group loads by username.
func WithDirectory(dir Directory) Option {
	return func(s *Service) { s.directory = dir }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConcurrency bounds how many pharmacies a group load runs at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithFailureRecorder reports isolated group failures.
func WithFailureRecorder(r FailureRecorder) Option {
	return func(s *Service) { s.failures = r }
}

// NewService wires a Store with optional collaborators.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default(), concurrency: 8}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch loads the current month, its targets and every prior-year month the
// selected date can compare against. Only a failure of the current month is
// returned; targets and prior-year data degrade to empty sets.
func (s *Service) Fetch(ctx context.Context, pharmacyID int64, date time.Time) (Dataset, error) {
	if pharmacyID <= 0 {
		return Dataset{}, ErrInvalidPharmacy
	}
	date = metrics.Day(date)
	month := metrics.MonthOf(date)
	ds := Dataset{PharmacyID: pharmacyID, Date: date}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		days, err := s.store.BusinessDays(gctx, pharmacyID, month)
		if err != nil {
			return fmt.Errorf("dashboard: fetch current %s: %w", month, err)
		}
		ds.Current = days
		return nil
	})
	g.Go(func() error {
		targets, err := s.store.Targets(gctx, pharmacyID, month)
		if err != nil {
			s.logDegraded(gctx, "targets", pharmacyID, month, err)
			return nil
		}
		ds.Targets = targets
		return nil
	})
	var mu sync.Mutex
	for _, prior := range metrics.ComparableMonths(date) {
		g.Go(func() error {
			days, err := s.store.BusinessDays(gctx, pharmacyID, prior)
			if err != nil {
				s.logDegraded(gctx, "prior-year days", pharmacyID, prior, err)
				return nil
			}
			mu.Lock()
			ds.Prior = append(ds.Prior, days...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Dataset{}, err
	}
	return ds, nil
}

// Compute turns a dataset into a report for mode. It performs no I/O.
func Compute(ds Dataset, mode metrics.Mode) Report {
	period := metrics.ResolvePeriod(ds.Date, mode)
	comparison := metrics.AggregateComparison(ds.Prior, period)
	snap := metrics.BuildSnapshot(metrics.Inputs{
		Current:    metrics.Aggregate(ds.Current, period.Current),
		Comparison: comparison,
		Target:     metrics.ResolveTarget(ds.Targets, period.Current, comparison.Turnover),
	})
	return Report{
		PharmacyID: ds.PharmacyID,
		Date:       ds.Date,
		Mode:       mode,
		Period:     period,
		Snapshot:   snap,
		Captions:   BuildCaptions(period, snap),
	}
}

// Report fetches and computes one pharmacy's card.
func (s *Service) Report(ctx context.Context, pharmacyID int64, date time.Time, mode metrics.Mode) (Report, error) {
	ds, err := s.Fetch(ctx, pharmacyID, date)
	if err != nil {
		return Report{}, err
	}
	return Compute(ds, mode), nil
}

// Trend returns the trading-day chart ending at end.
func (s *Service) Trend(ctx context.Context, pharmacyID int64, end time.Time) ([]metrics.TrendPoint, error) {
	if pharmacyID <= 0 {
		return nil, ErrInvalidPharmacy
	}
	end = metrics.Day(end)
	currentMonths, priorMonths := metrics.TrendMonths(end)

	var current, prior []metrics.BusinessDay
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		days, err := s.fetchMonths(gctx, pharmacyID, currentMonths, metrics.MonthOf(end))
		current = days
		return err
	})
	g.Go(func() error {
		days, _ := s.fetchMonths(gctx, pharmacyID, priorMonths, metrics.Month{})
		prior = days
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return metrics.BuildTrend(current, prior, end), nil
}

// Stock returns the stock cover position on date.
func (s *Service) Stock(ctx context.Context, pharmacyID int64, date time.Time) (metrics.StockPosition, error) {
	if pharmacyID <= 0 {
		return metrics.StockPosition{}, ErrInvalidPharmacy
	}
	date = metrics.Day(date)
	days, err := s.fetchMonths(ctx, pharmacyID, metrics.StockMonths(date), metrics.MonthOf(date))
	if err != nil {
		return metrics.StockPosition{}, err
	}
	return metrics.StockCover(days, date), nil
}

// fetchMonths loads several months concurrently. A failure of the required
// month is returned; other months are logged and skipped.
func (s *Service) fetchMonths(ctx context.Context, pharmacyID int64, months []metrics.Month, required metrics.Month) ([]metrics.BusinessDay, error) {
	results := make([][]metrics.BusinessDay, len(months))
	g, gctx := errgroup.WithContext(ctx)
	for i, month := range months {
		g.Go(func() error {
			days, err := s.store.BusinessDays(gctx, pharmacyID, month)
			if err != nil {
				if month == required {
					return fmt.Errorf("dashboard: fetch %s: %w", month, err)
				}
				s.logDegraded(gctx, "days", pharmacyID, month, err)
				return nil
			}
			results[i] = days
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var all []metrics.BusinessDay
	for _, days := range results {
		all = append(all, days...)
	}
	return all, nil
}

func (s *Service) logDegraded(ctx context.Context, what string, pharmacyID int64, month metrics.Month, err error) {
	s.logger.WarnContext(ctx, "upstream fetch degraded to empty set",
		slog.String("what", what),
		slog.Int64("pharmacy_id", pharmacyID),
		slog.String("month", month.String()),
		slog.Any("error", err),
	)
}
