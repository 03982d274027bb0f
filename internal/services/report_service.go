package services

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"asetmon/internal/cache"
	"asetmon/internal/core"
	applog "asetmon/internal/log"
)

// loadTimeout bounds one shared snapshot read.
const loadTimeout = 30 * time.Second

// AssetReader loads the stored asset table.
type AssetReader interface {
	ListAssets(ctx context.Context) ([]core.Asset, error)
	LastImport(ctx context.Context) (*core.ImportRecord, error)
}

// ReportService builds monitoring reports from a cached snapshot of the
// asset table. Concurrent misses share one database read.
type ReportService struct {
	assets     AssetReader
	snapshots  *cache.LRUCache[[]core.Asset]
	group      singleflight.Group
	generation atomic.Uint64
	logger     *applog.Logger
}

func NewReportService(assets AssetReader, ttl time.Duration, logger *applog.Logger) *ReportService {
	return &ReportService{
		assets:    assets,
		snapshots: cache.NewLRUCache[[]core.Asset]("assets", 1, ttl),
		logger:    logger.WithComponent(applog.ComponentReport),
	}
}

// Cache exposes the snapshot cache for periodic cleanup.
func (s *ReportService) Cache() cache.Cleaner {
	return s.snapshots
}

// Snapshot returns every stored asset. The slice is shared and must not be
// modified.
func (s *ReportService) Snapshot(ctx context.Context) ([]core.Asset, error) {
	gen := s.generation.Load()
	key := strconv.FormatUint(gen, 10)
	if assets, ok := s.snapshots.Get(key); ok {
		return assets, nil
	}

	// The read outlives any single caller; each caller waits on its own ctx.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		assets, err := s.assets.ListAssets(loadCtx)
		if err != nil {
			return nil, err
		}
		if s.generation.Load() == gen {
			s.snapshots.Set(key, assets)
		}
		return assets, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		s.logger.ErrorContext(ctx, "Failed to load assets", applog.FieldError, res.Err)
		return nil, res.Err
	}
	return res.Val.([]core.Asset), nil
}

// Build loads the assets and applies f.
func (s *ReportService) Build(ctx context.Context, f core.Filter) (core.Report, error) {
	all, err := s.Snapshot(ctx)
	if err != nil {
		return core.Report{}, err
	}
	return core.BuildReport(all, f), nil
}

// Invalidate forgets the cached snapshot; the next read hits the store.
func (s *ReportService) Invalidate() {
	s.generation.Add(1)
	s.snapshots.Purge()
}

// LastImport returns the most recent import, or nil if none happened.
func (s *ReportService) LastImport(ctx context.Context) (*core.ImportRecord, error) {
	return s.assets.LastImport(ctx)
}
