package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"culturehub-api/internal/guard"
	"culturehub-api/internal/model"
	"culturehub-api/internal/repository"
)

func TestCollect_AddsOnlyEligibleNearbySites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "ana")

	_, err := f.accounts.UpdateLocation(ctx, a.ID, here)
	require.NoError(t, err)

	got, err := f.collector.Collect(ctx, a.ID, 1000)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"louvre", "orsay", "comedie"}, siteIDs(got))
	assert.ElementsMatch(t, []string{"louvre", "orsay", "comedie"}, f.account(t, a.ID).VisitedSites)
}

func TestCollect_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "ana")
	_, err := f.accounts.UpdateLocation(ctx, a.ID, here)
	require.NoError(t, err)

	first, err := f.collector.Collect(ctx, a.ID, 1000)
	require.NoError(t, err)
	versionAfterFirst := f.account(t, a.ID).Version

	second, err := f.collector.Collect(ctx, a.ID, 1000)
	require.NoError(t, err)

	assert.Equal(t, siteIDs(first), siteIDs(second))
	assert.Equal(t, versionAfterFirst, f.account(t, a.ID).Version, "no write when nothing new")
}

func TestCollect_RequiresLocation(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "ana")

	_, err := f.collector.Collect(context.Background(), a.ID, 1000)
	assert.ErrorIs(t, err, model.ErrNoLocationSaved)
}

func TestCollect_ZeroPointIsALocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "ana")
	_, err := f.accounts.UpdateLocation(ctx, a.ID, model.Point{})
	require.NoError(t, err)

	got, err := f.collector.Collect(ctx, a.ID, 1000)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollect_RejectsBadRadius(t *testing.T) {
	f := newFixture(t)
	a := f.register(t, "ana")

	for _, r := range []float64{0, -5, 50001} {
		_, err := f.collector.Collect(context.Background(), a.ID, r)
		assert.ErrorIs(t, err, model.ErrValidation, "radius %v", r)
	}
}

func TestValidateRadius(t *testing.T) {
	f := newFixture(t)

	for _, r := range []float64{0, -1, 50000.5} {
		assert.ErrorIs(t, f.collector.ValidateRadius(r), model.ErrValidation, "radius %v", r)
	}
	for _, r := range []float64{0.5, 1000, 50000} {
		assert.NoError(t, f.collector.ValidateRadius(r), "radius %v", r)
	}
}

func TestCollect_RelocationClearsVisited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "ana")

	_, err := f.accounts.UpdateLocation(ctx, a.ID, here)
	require.NoError(t, err)
	_, err = f.collector.Collect(ctx, a.ID, 1000)
	require.NoError(t, err)
	require.NotEmpty(t, f.account(t, a.ID).VisitedSites)

	moved, err := f.accounts.UpdateLocation(ctx, a.ID, faraway.Location)
	require.NoError(t, err)
	assert.Empty(t, moved.VisitedSites)
	assert.Empty(t, f.account(t, a.ID).VisitedSites)

	got, err := f.collector.Collect(ctx, a.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"versailles"}, siteIDs(got))
}

type failingSites struct {
	repository.SiteRepository
	err error
}

func (f failingSites) FindWithinRadius(context.Context, model.Point, float64) ([]model.Site, error) {
	return nil, f.err
}

func TestCollect_PropagatesCatalogErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "ana")
	_, err := f.accounts.UpdateLocation(ctx, a.ID, here)
	require.NoError(t, err)

	down := failingSites{SiteRepository: f.store.Sites(), err: model.ErrTransient}
	collector := NewCollectorService(f.store.Accounts(), down, guard.New(nil), 50000, f.clock.Now, zap.NewNop())

	_, err = collector.Collect(ctx, a.ID, 1000)
	assert.ErrorIs(t, err, model.ErrTransient)
	assert.Empty(t, f.account(t, a.ID).VisitedSites)
}

// relocatingAccounts moves the account to another place right before the
// collector's first save, as a concurrent request would.
type relocatingAccounts struct {
	repository.AccountRepository
	relocate func()
	done     bool
}

func (r *relocatingAccounts) Save(ctx context.Context, a *model.Account) error {
	if !r.done {
		r.done = true
		r.relocate()
	}
	return r.AccountRepository.Save(ctx, a)
}

func TestCollect_RetriesAfterConcurrentRelocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "ana")
	_, err := f.accounts.UpdateLocation(ctx, a.ID, here)
	require.NoError(t, err)

	accounts := &relocatingAccounts{
		AccountRepository: f.store.Accounts(),
		relocate: func() {
			_, err := f.accounts.UpdateLocation(ctx, a.ID, faraway.Location)
			require.NoError(t, err)
		},
	}
	collector := NewCollectorService(accounts, f.store.Sites(), guard.New(guard.DefaultPlaceholders), 50000, f.clock.Now, zap.NewNop())

	got, err := collector.Collect(ctx, a.ID, 1000)
	require.NoError(t, err)
	assert.Equal(t, []string{"versailles"}, siteIDs(got))
	assert.Equal(t, []string{"versailles"}, f.account(t, a.ID).VisitedSites)
}

type conflictingAccounts struct {
	repository.AccountRepository
}

func (conflictingAccounts) Save(context.Context, *model.Account) error {
	return model.ErrVersionConflict
}

func TestCollect_GivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "ana")
	_, err := f.accounts.UpdateLocation(ctx, a.ID, here)
	require.NoError(t, err)

	collector := NewCollectorService(conflictingAccounts{f.store.Accounts()}, f.store.Sites(), guard.New(nil), 50000, f.clock.Now, zap.NewNop())
	_, err = collector.Collect(ctx, a.ID, 1000)
	assert.ErrorIs(t, err, model.ErrConflict)
	assert.True(t, errors.Is(err, model.ErrVersionConflict))
}
