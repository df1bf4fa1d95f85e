package upstream

import (
	"context"
	"strconv"

	"github.com/pharmasight/pharmasight/internal/metrics"
)

// Source is the uncached upstream surface.
type Source interface {
	BusinessDays(ctx context.Context, pharmacyID int64, month metrics.Month) ([]metrics.BusinessDay, error)
	Targets(ctx context.Context, pharmacyID int64, month metrics.Month) ([]metrics.Target, error)
	Pharmacies(ctx context.Context, username string) ([]metrics.Pharmacy, error)
}

// CachedSource decorates a Source with the versioned cache.
type CachedSource struct {
	src   Source
	cache *Cache
}

// NewCachedSource wraps src. A disabled cache passes every call through.
func NewCachedSource(src Source, cache *Cache) *CachedSource {
	return &CachedSource{src: src, cache: cache}
}

func (s *CachedSource) BusinessDays(ctx context.Context, pharmacyID int64, month metrics.Month) ([]metrics.BusinessDay, error) {
	return through(ctx, s.cache, "upstream:days:"+strconv.FormatInt(pharmacyID, 10)+":"+month.String(),
		func(ctx context.Context) ([]metrics.BusinessDay, error) {
			return s.src.BusinessDays(ctx, pharmacyID, month)
		})
}

func (s *CachedSource) Targets(ctx context.Context, pharmacyID int64, month metrics.Month) ([]metrics.Target, error) {
	return through(ctx, s.cache, "upstream:targets:"+strconv.FormatInt(pharmacyID, 10)+":"+month.String(),
		func(ctx context.Context) ([]metrics.Target, error) {
			return s.src.Targets(ctx, pharmacyID, month)
		})
}

func (s *CachedSource) Pharmacies(ctx context.Context, username string) ([]metrics.Pharmacy, error) {
	return through(ctx, s.cache, "upstream:pharmacies:"+username,
		func(ctx context.Context) ([]metrics.Pharmacy, error) {
			return s.src.Pharmacies(ctx, username)
		})
}
