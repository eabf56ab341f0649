package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"culturehub-api/internal/model"
)

// Collection names.
const (
	sitesCollection      = "sites"
	accountsCollection   = "accounts"
	tradeCodesCollection = "trade_codes"
	reviewsCollection    = "reviews"
	transfersCollection  = "transfers"
)

// MongoStore implements Store on MongoDB. Transactions need a replica set
// (a single-node replica set is enough).
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger

	sites      *mongoSites
	accounts   *mongoAccounts
	tradeCodes *mongoTradeCodes
	reviews    *mongoReviews
	transfers  *mongoTransfers
}

// NewMongoStore connects to MongoDB and ensures the indexes exist.
func NewMongoStore(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute).
		SetRetryWrites(true).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := newMongoStore(client, client.Database(database), logger)
	s.ensureIndexes(ctx)

	logger.Info("connected to MongoDB", zap.String("database", database))
	return s, nil
}

func newMongoStore(client *mongo.Client, db *mongo.Database, logger *zap.Logger) *MongoStore {
	return &MongoStore{
		client:     client,
		db:         db,
		logger:     logger,
		sites:      &mongoSites{coll: db.Collection(sitesCollection)},
		accounts:   &mongoAccounts{coll: db.Collection(accountsCollection)},
		tradeCodes: &mongoTradeCodes{coll: db.Collection(tradeCodesCollection)},
		reviews:    &mongoReviews{coll: db.Collection(reviewsCollection)},
		transfers:  &mongoTransfers{coll: db.Collection(transfersCollection)},
	}
}

// ensureIndexes creates the indexes the store relies on. Failures are
// logged; a missing 2dsphere index makes radius queries fail loudly later.
func (s *MongoStore) ensureIndexes(ctx context.Context) {
	indexes := map[string][]mongo.IndexModel{
		sitesCollection: {
			{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "name", Value: 1}}},
		},
		accountsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		tradeCodesCollection: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
			// Best-effort eviction; validity is always checked against now.
			{Keys: bson.D{{Key: "expires_at", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
		reviewsCollection: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "site_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "site_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		transfersCollection: {
			{Keys: bson.D{{Key: "from_account_id", Value: 1}, {Key: "transferred_at", Value: -1}}},
			{Keys: bson.D{{Key: "to_account_id", Value: 1}, {Key: "transferred_at", Value: -1}}},
		},
	}

	for name, models := range indexes {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			s.logger.Warn("failed to create indexes", zap.String("collection", name), zap.Error(err))
		}
	}
}

// WithinTransaction runs fn in a multi-document transaction. The driver
// retries fn on transient transaction errors, so fn must be idempotent
// apart from its store writes.
func (s *MongoStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}

	sess, err := s.client.StartSession()
	if err != nil {
		return mongoErr("start session", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) Sites() SiteRepository           { return s.sites }
func (s *MongoStore) Accounts() AccountRepository     { return s.accounts }
func (s *MongoStore) TradeCodes() TradeCodeRepository { return s.tradeCodes }
func (s *MongoStore) Reviews() ReviewRepository       { return s.reviews }
func (s *MongoStore) Transfers() TransferRepository   { return s.transfers }

// Ping checks the primary is reachable.
func (s *MongoStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return mongoErr("ping", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// mongoErr maps driver errors onto the domain taxonomy while keeping the
// driver error in the chain, so transaction retry labels stay visible.
func mongoErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w: %w", op, model.ErrConflict, err)
	case mongo.IsNetworkError(err), mongo.IsTimeout(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, model.ErrTransient, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// geoPoint is a GeoJSON point as stored for 2dsphere indexes.
type geoPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

func toGeoPoint(p model.Point) geoPoint {
	return geoPoint{Type: "Point", Coordinates: []float64{p.Lon, p.Lat}}
}

func (g geoPoint) point() model.Point {
	if len(g.Coordinates) < 2 {
		return model.Point{}
	}
	return model.Point{Lon: g.Coordinates[0], Lat: g.Coordinates[1]}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Ensure MongoStore implements Store
var _ Store = (*MongoStore)(nil)
