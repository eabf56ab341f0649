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

type reviewDocument struct {
	ID        string    `bson:"_id"`
	AccountID string    `bson:"account_id"`
	SiteID    string    `bson:"site_id"`
	Rating    int       `bson:"rating"`
	Comment   string    `bson:"comment"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type mongoReviews struct {
	coll *mongo.Collection
}

func (r *mongoReviews) Create(ctx context.Context, review *model.Review) error {
	_, err := r.coll.InsertOne(ctx, reviewDocument(*review))
	return mongoErr("create review", err)
}

func (r *mongoReviews) Get(ctx context.Context, id string) (*model.Review, error) {
	var doc reviewDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mongoErr("get review "+id, err)
	}
	review := model.Review(doc)
	return &review, nil
}

func (r *mongoReviews) ListBySite(ctx context.Context, siteID string) ([]model.Review, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cur, err := r.coll.Find(ctx, bson.M{"site_id": siteID}, opts)
	if err != nil {
		return nil, mongoErr("list reviews", err)
	}
	defer cur.Close(ctx)

	var docs []reviewDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr("list reviews", err)
	}

	out := make([]model.Review, len(docs))
	for i, d := range docs {
		out[i] = model.Review(d)
	}
	return out, nil
}

func (r *mongoReviews) Update(ctx context.Context, review *model.Review) error {
	update := bson.M{"$set": bson.M{
		"rating":     review.Rating,
		"comment":    review.Comment,
		"updated_at": review.UpdatedAt,
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": review.ID}, update)
	if err != nil {
		return mongoErr("update review "+review.ID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("review %s: %w", review.ID, model.ErrNotFound)
	}
	return nil
}

func (r *mongoReviews) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mongoErr("delete review "+id, err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("review %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (r *mongoReviews) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	return n, mongoErr("count reviews", err)
}
