package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"culturehub-api/internal/cache"
	"culturehub-api/internal/geo"
	"culturehub-api/internal/guard"
	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
)

const siteCacheKeyPrefix = "site:"

// CatalogService serves the public, read-only view of the site catalog.
// Only eligible sites are listed; single lookups go through the cache
// because sites do not change after import.
type CatalogService struct {
	sites     repository.SiteRepository
	guard     *guard.Guard
	cache     cache.Cache
	cacheTTL  time.Duration
	maxRadius float64
	logger    *zap.Logger
}

// NewCatalogService creates a catalog service. c may be nil to disable
// caching.
func NewCatalogService(sites repository.SiteRepository, g *guard.Guard, c cache.Cache, cacheTTL time.Duration, maxRadius float64, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		sites:     sites,
		guard:     g,
		cache:     c,
		cacheTTL:  cacheTTL,
		maxRadius: maxRadius,
		logger:    logger.Named("catalog"),
	}
}

// Get returns a site by id, eligible or not.
func (s *CatalogService) Get(ctx context.Context, id string) (*model.Site, error) {
	if s.cache == nil {
		return s.sites.FindByID(ctx, id)
	}

	var repoErr error
	data, err := s.cache.GetOrSet(ctx, siteCacheKeyPrefix+id, s.cacheTTL, func() ([]byte, error) {
		site, err := s.sites.FindByID(ctx, id)
		if err != nil {
			repoErr = err
			return nil, err
		}
		return json.Marshal(site)
	})
	if repoErr != nil {
		return nil, repoErr
	}
	if err == nil {
		var site model.Site
		if err = json.Unmarshal(data, &site); err == nil {
			return &site, nil
		}
	}

	s.logger.Warn("site cache unavailable, reading through", zap.String("site_id", id), zap.Error(err))
	return s.sites.FindByID(ctx, id)
}

// Resolve returns the sites for ids in order, skipping unknown ids.
func (s *CatalogService) Resolve(ctx context.Context, ids []string) ([]model.Site, error) {
	return s.sites.FindByIDs(ctx, ids)
}

// ListEligible lists eligible sites, optionally filtered by category.
// Paging applies to the stored catalog, so a page may hold fewer than
// Limit sites when placeholders are filtered out.
func (s *CatalogService) ListEligible(ctx context.Context, filter repository.SiteFilter) ([]model.Site, error) {
	sites, err := s.sites.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.guard.Filter(sites), nil
}

// Nearby returns eligible sites within radius meters of center, nearest
// first.
func (s *CatalogService) Nearby(ctx context.Context, center model.Point, radius float64) ([]model.Site, error) {
	if !geo.ValidPoint(center) {
		return nil, validationError("coordinates out of range")
	}
	if radius <= 0 || radius > s.maxRadius {
		return nil, validationError("radius must be in (0, %g]", s.maxRadius)
	}

	sites, err := s.sites.FindWithinRadius(ctx, center, radius)
	if err != nil {
		return nil, err
	}
	return s.guard.Filter(sites), nil
}

// Count returns the size of the stored catalog.
func (s *CatalogService) Count(ctx context.Context) (int64, error) {
	return s.sites.Count(ctx)
}

// requireEligible loads a site and checks it may enter user-owned state.
func (s *CatalogService) requireEligible(ctx context.Context, siteID string) (*model.Site, error) {
	site, err := s.Get(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if !s.guard.IsEligible(site) {
		return nil, model.ErrIneligible
	}
	return site, nil
}
