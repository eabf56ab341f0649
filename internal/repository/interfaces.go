package repository

import (
	"context"
	"time"

	"culturehub-api/internal/model"
)

// SiteRepository is the read-mostly site catalog. Only the importer writes.
type SiteRepository interface {
	// FindWithinRadius returns every site whose great-circle distance from
	// center is at most radius meters, nearest first.
	FindWithinRadius(ctx context.Context, center model.Point, radius float64) ([]model.Site, error)

	// FindByID returns model.ErrNotFound if the site does not exist.
	FindByID(ctx context.Context, id string) (*model.Site, error)

	// FindByIDs returns the existing sites in the order of ids. Unknown ids
	// are skipped.
	FindByIDs(ctx context.Context, ids []string) ([]model.Site, error)

	// List returns sites ordered by name, optionally filtered by category.
	List(ctx context.Context, filter SiteFilter) ([]model.Site, error)

	// UpsertMany inserts sites whose ID is not yet stored and returns how
	// many were inserted. Existing sites are left untouched.
	UpsertMany(ctx context.Context, sites []model.Site) (int, error)

	// Count returns the number of stored sites.
	Count(ctx context.Context) (int64, error)
}

// SiteFilter narrows SiteRepository.List.
type SiteFilter struct {
	Category string
	Limit    int
	Offset   int
}

// AccountRepository stores user accounts.
type AccountRepository interface {
	// Create stores a new account with Version 1. Returns model.ErrConflict
	// if the email is taken.
	Create(ctx context.Context, account *model.Account) error

	// Get returns model.ErrNotFound if the account does not exist.
	Get(ctx context.Context, id string) (*model.Account, error)

	// FindByEmail matches case-insensitively.
	FindByEmail(ctx context.Context, email string) (*model.Account, error)

	// Save replaces the stored account only if its version still equals
	// account.Version, then bumps account.Version. A stale account yields
	// model.ErrVersionConflict.
	Save(ctx context.Context, account *model.Account) error

	// EmailTaken reports whether another account than exceptID uses email.
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)

	Count(ctx context.Context) (int64, error)
}

// TradeCodeRepository stores issued trade codes.
type TradeCodeRepository interface {
	// Create returns model.ErrConflict if the code already exists.
	Create(ctx context.Context, code *model.TradeCode) error

	// Get returns the code even if it has expired but was not evicted yet.
	Get(ctx context.Context, code string) (*model.TradeCode, error)

	// Delete returns model.ErrNotFound if the code was already consumed.
	Delete(ctx context.Context, code string) error

	// DeleteExpired removes codes with expiresAt <= now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	Count(ctx context.Context) (int64, error)
}

// ReviewRepository stores site reviews.
type ReviewRepository interface {
	// Create returns model.ErrConflict if the account already reviewed the site.
	Create(ctx context.Context, review *model.Review) error
	Get(ctx context.Context, id string) (*model.Review, error)
	// ListBySite returns the newest reviews first.
	ListBySite(ctx context.Context, siteID string) ([]model.Review, error)
	Update(ctx context.Context, review *model.Review) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}

// TransferRepository is the append-only trade ledger.
type TransferRepository interface {
	Append(ctx context.Context, transfer *model.Transfer) error
	// ListByAccount returns transfers sent or received by the account,
	// newest first.
	ListByAccount(ctx context.Context, accountID string) ([]model.Transfer, error)
	Count(ctx context.Context) (int64, error)
}

// Transactor runs fn atomically. Repository calls made with the context
// passed to fn take part in the transaction; if fn returns an error every
// write is discarded.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Store bundles the repositories backed by one database.
type Store interface {
	Transactor

	Sites() SiteRepository
	Accounts() AccountRepository
	TradeCodes() TradeCodeRepository
	Reviews() ReviewRepository
	Transfers() TransferRepository

	// Ping checks connectivity for readiness probes.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
