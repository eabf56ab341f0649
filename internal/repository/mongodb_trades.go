package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"culturehub-api/internal/model"
)

type tradeCodeDocument struct {
	Code      string    `bson:"code"`
	AccountID string    `bson:"account_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

type mongoTradeCodes struct {
	coll *mongo.Collection
}

func (r *mongoTradeCodes) Create(ctx context.Context, code *model.TradeCode) error {
	_, err := r.coll.InsertOne(ctx, tradeCodeDocument(*code))
	return mongoErr("create trade code", err)
}

// Get may return a code the TTL monitor has not evicted yet; callers check
// expiry themselves.
func (r *mongoTradeCodes) Get(ctx context.Context, code string) (*model.TradeCode, error) {
	var doc tradeCodeDocument
	if err := r.coll.FindOne(ctx, bson.M{"code": code}).Decode(&doc); err != nil {
		return nil, mongoErr("get trade code", err)
	}
	tc := model.TradeCode(doc)
	return &tc, nil
}

func (r *mongoTradeCodes) Delete(ctx context.Context, code string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"code": code})
	if err != nil {
		return mongoErr("delete trade code", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("trade code: %w", model.ErrNotFound)
	}
	return nil
}

func (r *mongoTradeCodes) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"expires_at": bson.M{"$lte": now}})
	if err != nil {
		return 0, mongoErr("delete expired trade codes", err)
	}
	return res.DeletedCount, nil
}

func (r *mongoTradeCodes) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	return n, mongoErr("count trade codes", err)
}

type transferDocument struct {
	ID            string    `bson:"_id"`
	SiteID        string    `bson:"site_id"`
	FromAccountID string    `bson:"from_account_id"`
	ToAccountID   string    `bson:"to_account_id"`
	Code          string    `bson:"code"`
	TransferredAt time.Time `bson:"transferred_at"`
}

type mongoTransfers struct {
	coll *mongo.Collection
}

func (r *mongoTransfers) Append(ctx context.Context, transfer *model.Transfer) error {
	_, err := r.coll.InsertOne(ctx, transferDocument(*transfer))
	return mongoErr("append transfer", err)
}

func (r *mongoTransfers) ListByAccount(ctx context.Context, accountID string) ([]model.Transfer, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"from_account_id": accountID},
		bson.M{"to_account_id": accountID},
	}}
	opts := options.Find().SetSort(bson.D{{Key: "transferred_at", Value: -1}, {Key: "_id", Value: 1}})

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, mongoErr("list transfers", err)
	}
	defer cur.Close(ctx)

	var docs []transferDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr("list transfers", err)
	}

	out := make([]model.Transfer, len(docs))
	for i, d := range docs {
		out[i] = model.Transfer(d)
	}
	return out, nil
}

func (r *mongoTransfers) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	return n, mongoErr("count transfers", err)
}
