package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"culturehub-api/internal/guard"
	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
)

// CollectorService turns an account's saved location into its visited set.
type CollectorService struct {
	accounts  repository.AccountRepository
	sites     repository.SiteRepository
	guard     *guard.Guard
	maxRadius float64
	now       Clock
	logger    *zap.Logger
}

// NewCollectorService creates a collector. Radii above maxRadius are
// rejected.
func NewCollectorService(accounts repository.AccountRepository, sites repository.SiteRepository, g *guard.Guard, maxRadius float64, now Clock, logger *zap.Logger) *CollectorService {
	return &CollectorService{
		accounts:  accounts,
		sites:     sites,
		guard:     g,
		maxRadius: maxRadius,
		now:       now,
		logger:    logger.Named("collector"),
	}
}

// Collect adds every eligible site within radius meters of the account's
// current location to its visited set and returns the whole visited set,
// resolved to sites. Nothing is written when no new site was found.
//
// The visited set is saved with a version check. If the account changed in
// between (a relocation, a favorite) the whole read-query-merge cycle runs
// again against the fresh account, so sites found around an old location
// never land in the set of a new one.
func (s *CollectorService) Collect(ctx context.Context, accountID string, radius float64) ([]model.Site, error) {
	if err := s.ValidateRadius(radius); err != nil {
		return nil, err
	}

	var visited []string
	err := retryOnConflict(ctx, func() error {
		account, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if account.Location == nil {
			return model.ErrNoLocationSaved
		}

		nearby, err := s.sites.FindWithinRadius(ctx, *account.Location, radius)
		if err != nil {
			return fmt.Errorf("find sites within %gm: %w", radius, err)
		}

		eligible := s.guard.Filter(nearby)
		ids := make([]string, len(eligible))
		for i := range eligible {
			ids[i] = eligible[i].ID
		}

		added := account.AddVisited(ids)
		if len(added) > 0 {
			account.UpdatedAt = s.now()
			if err := s.accounts.Save(ctx, account); err != nil {
				return err
			}
			s.logger.Debug("visited sites collected",
				zap.String("account_id", accountID),
				zap.Int("added", len(added)),
				zap.Int("total", len(account.VisitedSites)))
		}

		visited = account.VisitedSites
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.sites.FindByIDs(ctx, visited)
}

// ValidateRadius rejects radii outside (0, maxRadius].
func (s *CollectorService) ValidateRadius(radius float64) error {
	if radius <= 0 || radius > s.maxRadius {
		return validationError("radius must be in (0, %g]", s.maxRadius)
	}
	return nil
}
