package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"culturehub-api/internal/cache"
	"culturehub-api/internal/guard"
	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Paris, around the Louvre.
var (
	here = model.Point{Lon: 2.3376, Lat: 48.8606}

	louvre   = model.Site{ID: "louvre", Name: "Louvre", Category: "museum", Location: here}
	orsay    = model.Site{ID: "orsay", Name: "Musée d'Orsay", Category: "museum", Location: model.Point{Lon: 2.3266, Lat: 48.8600}}
	comedie  = model.Site{ID: "comedie", Name: "Comédie-Française", Category: "theatre", Location: model.Point{Lon: 2.3362, Lat: 48.8632}}
	unnamed  = model.Site{ID: "unnamed", Name: "Unknown", Category: "artwork", Location: model.Point{Lon: 2.3380, Lat: 48.8610}}
	faraway  = model.Site{ID: "versailles", Name: "Versailles", Category: "castle", Location: model.Point{Lon: 2.1204, Lat: 48.8049}}
	allSites = []model.Site{louvre, orsay, comedie, unnamed, faraway}
)

type fixture struct {
	store      *repository.MemoryStore
	clock      *fakeClock
	cache      *cache.MemoryCache
	catalog    *CatalogService
	collector  *CollectorService
	accounts   *AccountService
	sessions   *SessionService
	collection *CollectionService
	trades     *TradeService
	reviews    *ReviewService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := repository.NewMemoryStore()
	_, err := store.Sites().UpsertMany(context.Background(), allSites)
	require.NoError(t, err)

	clock := newFakeClock()
	c := cache.NewMemoryCache()
	t.Cleanup(func() { _ = c.Close() })

	logger := zap.NewNop()
	g := guard.New(guard.DefaultPlaceholders)

	f := &fixture{store: store, clock: clock, cache: c}
	f.catalog = NewCatalogService(store.Sites(), g, c, time.Minute, 50000, logger)
	f.collector = NewCollectorService(store.Accounts(), store.Sites(), g, 50000, clock.Now, logger)
	f.accounts = NewAccountService(store.Accounts(), clock.Now, logger)
	f.accounts.hashCost = bcrypt.MinCost
	f.sessions = NewSessionService(c, time.Hour, clock.Now, logger)
	f.collection = NewCollectionService(store.Accounts(), f.catalog, clock.Now, logger)
	f.trades = NewTradeService(store, time.Hour, clock.Now, logger)
	f.reviews = NewReviewService(store, store.Reviews(), store.Accounts(), f.catalog, clock.Now, logger)
	return f
}

func (f *fixture) register(t *testing.T, name string) *model.Account {
	t.Helper()
	a, err := f.accounts.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) account(t *testing.T, id string) *model.Account {
	t.Helper()
	a, err := f.store.Accounts().Get(context.Background(), id)
	require.NoError(t, err)
	return a
}

func siteIDs(sites []model.Site) []string {
	ids := make([]string, len(sites))
	for i := range sites {
		ids[i] = sites[i].ID
	}
	return ids
}
