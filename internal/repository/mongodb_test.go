package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"culturehub-api/internal/model"
)

func TestOrderByIDs(t *testing.T) {
	found := []model.Site{{ID: "orsay"}, {ID: "comedie"}, {ID: "louvre"}}

	got := orderByIDs(found, []string{"louvre", "missing", "orsay", "comedie"})
	require.Len(t, got, 3)
	assert.Equal(t, "louvre", got[0].ID)
	assert.Equal(t, "orsay", got[1].ID)
	assert.Equal(t, "comedie", got[2].ID)

	assert.Empty(t, orderByIDs(found, nil))
}

func TestMongoErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no documents", mongo.ErrNoDocuments, model.ErrNotFound},
		{"duplicate key", mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}, model.ErrConflict},
		{"network", mongo.CommandError{Code: 6, Message: "host unreachable", Labels: []string{"NetworkError"}}, model.ErrTransient},
		{"deadline", context.DeadlineExceeded, model.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := mongoErr("op", tt.err)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "op: ")
		})
	}

	assert.NoError(t, mongoErr("op", nil))

	other := mongoErr("op", errors.New("boom"))
	assert.EqualError(t, other, "op: boom")
	for _, sentinel := range []error{model.ErrNotFound, model.ErrConflict, model.ErrTransient} {
		assert.NotErrorIs(t, other, sentinel)
	}
}

func TestMongoErr_KeepsDriverErrorInChain(t *testing.T) {
	cause := mongo.CommandError{Code: 6, Labels: []string{"NetworkError", "TransientTransactionError"}}
	err := mongoErr("save", cause)

	var cmdErr mongo.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.True(t, cmdErr.HasErrorLabel("TransientTransactionError"))
}

func sampleAccount() *model.Account {
	caught := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &model.Account{
		ID:              "acc-1",
		Name:            "Ana",
		Email:           "Ana@Example.com",
		PasswordHash:    "$2a$10$hash",
		LocationVersion: 3,
		Favorites:       []string{"orsay"},
		VisitedSites:    []string{"louvre", "orsay"},
		Inventory: []model.InventoryEntry{{
			SiteID:   "louvre",
			Count:    2,
			CaughtAt: caught,
			TradeHistory: []model.TradeEvent{
				{CounterpartyID: "acc-2", Type: "received", Date: caught.Add(time.Hour)},
			},
		}},
		Version:   4,
		CreatedAt: caught,
		UpdatedAt: caught.Add(2 * time.Hour),
	}
}

func TestAccountDocument_RoundTrip(t *testing.T) {
	a := sampleAccount()
	doc := toAccountDocument(a)
	assert.Equal(t, "ana@example.com", doc.Email)
	assert.Nil(t, doc.Location)

	back := doc.account()
	assert.Nil(t, back.Location, "no location stays unset")
	assert.Equal(t, a.Inventory, back.Inventory)
	assert.Equal(t, a.VisitedSites, back.VisitedSites)
	assert.Equal(t, a.Favorites, back.Favorites)
	assert.Equal(t, a.Version, back.Version)

	a.Location = &model.Point{}
	doc = toAccountDocument(a)
	require.NotNil(t, doc.Location)
	assert.Equal(t, []float64{0, 0}, doc.Location.Coordinates)

	back = doc.account()
	require.NotNil(t, back.Location, "null island is still a location")
	assert.Equal(t, model.Point{}, *back.Location)
}

func TestAccountDocument_EmptySlicesStayArrays(t *testing.T) {
	doc := toAccountDocument(&model.Account{ID: "acc-1"})
	assert.NotNil(t, doc.Favorites)
	assert.NotNil(t, doc.VisitedSites)

	back := (&accountDocument{ID: "acc-1"}).account()
	assert.NotNil(t, back.Favorites)
	assert.NotNil(t, back.VisitedSites)
}

// accountBatch encodes a as the collection stores it, for cursor replies.
func accountBatch(t *testing.T, a *model.Account) bson.D {
	t.Helper()
	raw, err := bson.Marshal(toAccountDocument(a))
	require.NoError(t, err)
	var d bson.D
	require.NoError(t, bson.Unmarshal(raw, &d))
	return d
}

func namespace(mt *mtest.T) string {
	return mt.Coll.Database().Name() + "." + mt.Coll.Name()
}

func TestMongoAccounts(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("get decodes stored account", func(mt *mtest.T) {
		repo := &mongoAccounts{coll: mt.Coll}
		want := sampleAccount()
		want.Location = &model.Point{Lon: 2.3376, Lat: 48.8606}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, accountBatch(mt.T, want)))

		got, err := repo.Get(context.Background(), want.ID)
		require.NoError(mt, err)
		assert.Equal(mt, "ana@example.com", got.Email)
		require.NotNil(mt, got.Location)
		assert.Equal(mt, *want.Location, *got.Location)
		require.Len(mt, got.Inventory, 1)
		assert.Equal(mt, 2, got.Inventory[0].Count)
		assert.True(mt, want.Inventory[0].CaughtAt.Equal(got.Inventory[0].CaughtAt))
		require.Len(mt, got.Inventory[0].TradeHistory, 1)
		assert.Equal(mt, "acc-2", got.Inventory[0].TradeHistory[0].CounterpartyID)
	})

	mt.Run("get missing account", func(mt *mtest.T) {
		repo := &mongoAccounts{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := repo.Get(context.Background(), "nobody")
		assert.ErrorIs(mt, err, model.ErrNotFound)
	})

	mt.Run("create duplicate email", func(mt *mtest.T) {
		repo := &mongoAccounts{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error collection: accounts index: email_1",
		}))

		a := sampleAccount()
		a.Version = 0
		err := repo.Create(context.Background(), a)
		assert.ErrorIs(mt, err, model.ErrConflict)
		assert.Zero(mt, a.Version)
	})

	mt.Run("save bumps version", func(mt *mtest.T) {
		repo := &mongoAccounts{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		a := sampleAccount()
		require.NoError(mt, repo.Save(context.Background(), a))
		assert.Equal(mt, int64(5), a.Version)
	})

	mt.Run("save on deleted account", func(mt *mtest.T) {
		repo := &mongoAccounts{coll: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch),
		)

		a := sampleAccount()
		err := repo.Save(context.Background(), a)
		assert.ErrorIs(mt, err, model.ErrNotFound)
		assert.NotErrorIs(mt, err, model.ErrVersionConflict)
		assert.Equal(mt, int64(4), a.Version)
	})

	mt.Run("save with stale version", func(mt *mtest.T) {
		repo := &mongoAccounts{coll: mt.Coll}
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch, bson.D{{Key: "n", Value: int32(1)}}),
		)

		a := sampleAccount()
		err := repo.Save(context.Background(), a)
		assert.ErrorIs(mt, err, model.ErrVersionConflict)
		assert.Equal(mt, int64(4), a.Version)
	})
}

func TestMongoTradeCodes(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("delete consumes code", func(mt *mtest.T) {
		repo := &mongoTradeCodes{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}))

		assert.NoError(mt, repo.Delete(context.Background(), "c0ffee"))
	})

	mt.Run("delete already consumed code", func(mt *mtest.T) {
		repo := &mongoTradeCodes{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}))

		err := repo.Delete(context.Background(), "c0ffee")
		assert.ErrorIs(mt, err, model.ErrNotFound)
	})

	mt.Run("get missing code", func(mt *mtest.T) {
		repo := &mongoTradeCodes{coll: mt.Coll}
		mt.AddMockResponses(mtest.CreateCursorResponse(0, namespace(mt), mtest.FirstBatch))

		_, err := repo.Get(context.Background(), "c0ffee")
		assert.ErrorIs(mt, err, model.ErrNotFound)
	})
}
