package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
)

// InventoryItem is an inventory entry with its site resolved.
type InventoryItem struct {
	model.InventoryEntry
	Site *model.Site `json:"site,omitempty"`
}

// CollectionService manages the user-owned site collections: favorites and
// the caught inventory. Every site admitted goes through the guard.
type CollectionService struct {
	accounts repository.AccountRepository
	catalog  *CatalogService
	now      Clock
	logger   *zap.Logger
}

// NewCollectionService creates a collection service.
func NewCollectionService(accounts repository.AccountRepository, catalog *CatalogService, now Clock, logger *zap.Logger) *CollectionService {
	return &CollectionService{
		accounts: accounts,
		catalog:  catalog,
		now:      now,
		logger:   logger.Named("collection"),
	}
}

// Catch adds one unit of an eligible site to the account's inventory and
// returns the updated entry.
func (s *CollectionService) Catch(ctx context.Context, accountID, siteID string) (*model.InventoryEntry, error) {
	if siteID == "" {
		return nil, validationError("siteId is required")
	}
	if _, err := s.catalog.requireEligible(ctx, siteID); err != nil {
		return nil, err
	}

	var entry model.InventoryEntry
	err := retryOnConflict(ctx, func() error {
		account, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		now := s.now()
		account.Catch(siteID, now)
		account.UpdatedAt = now
		if err := s.accounts.Save(ctx, account); err != nil {
			return err
		}
		entry = *account.Entry(siteID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("site caught", zap.String("account_id", accountID), zap.String("site_id", siteID), zap.Int("count", entry.Count))
	return &entry, nil
}

// Inventory returns the account's inventory with sites resolved.
func (s *CollectionService) Inventory(ctx context.Context, accountID string) ([]InventoryItem, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(account.Inventory))
	for i, e := range account.Inventory {
		ids[i] = e.SiteID
	}
	sites, err := s.catalog.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*model.Site, len(sites))
	for i := range sites {
		byID[sites[i].ID] = &sites[i]
	}

	items := make([]InventoryItem, len(account.Inventory))
	for i, e := range account.Inventory {
		items[i] = InventoryItem{InventoryEntry: e, Site: byID[e.SiteID]}
	}
	return items, nil
}

// Favorites returns the account's favorite sites.
func (s *CollectionService) Favorites(ctx context.Context, accountID string) ([]model.Site, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.catalog.Resolve(ctx, account.Favorites)
}

// AddFavorite adds an eligible site to the favorites and returns them.
func (s *CollectionService) AddFavorite(ctx context.Context, accountID, siteID string) ([]model.Site, error) {
	if siteID == "" {
		return nil, validationError("siteId is required")
	}
	if _, err := s.catalog.requireEligible(ctx, siteID); err != nil {
		return nil, err
	}

	return s.updateFavorites(ctx, accountID, func(a *model.Account) error {
		if !a.AddFavorite(siteID) {
			return fmt.Errorf("site %s is already a favorite: %w", siteID, model.ErrConflict)
		}
		return nil
	})
}

// RemoveFavorite removes a site from the favorites and returns them.
func (s *CollectionService) RemoveFavorite(ctx context.Context, accountID, siteID string) ([]model.Site, error) {
	return s.updateFavorites(ctx, accountID, func(a *model.Account) error {
		if !a.RemoveFavorite(siteID) {
			return fmt.Errorf("site %s is not a favorite: %w", siteID, model.ErrNotFound)
		}
		return nil
	})
}

func (s *CollectionService) updateFavorites(ctx context.Context, accountID string, mutate func(*model.Account) error) ([]model.Site, error) {
	var favorites []string
	err := retryOnConflict(ctx, func() error {
		account, err := s.accounts.Get(ctx, accountID)
		if err != nil {
			return err
		}
		if err := mutate(account); err != nil {
			return err
		}
		account.UpdatedAt = s.now()
		if err := s.accounts.Save(ctx, account); err != nil {
			return err
		}
		favorites = account.Favorites
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.catalog.Resolve(ctx, favorites)
}
