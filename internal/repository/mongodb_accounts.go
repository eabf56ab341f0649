package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"culturehub-api/internal/model"
)

type tradeEventDocument struct {
	CounterpartyID string    `bson:"counterparty_id"`
	Type           string    `bson:"type"`
	Date           time.Time `bson:"date"`
}

type inventoryDocument struct {
	SiteID       string               `bson:"site_id"`
	Count        int                  `bson:"count"`
	CaughtAt     time.Time            `bson:"caught_at"`
	TradeHistory []tradeEventDocument `bson:"trade_history"`
}

type accountDocument struct {
	ID              string              `bson:"_id"`
	Name            string              `bson:"name"`
	Email           string              `bson:"email"`
	PasswordHash    string              `bson:"password_hash"`
	Location        *geoPoint           `bson:"current_location,omitempty"`
	LocationVersion int64               `bson:"location_version"`
	Favorites       []string            `bson:"favorites"`
	VisitedSites    []string            `bson:"visited_sites"`
	Inventory       []inventoryDocument `bson:"inventory"`
	Version         int64               `bson:"version"`
	CreatedAt       time.Time           `bson:"created_at"`
	UpdatedAt       time.Time           `bson:"updated_at"`
}

func toAccountDocument(a *model.Account) accountDocument {
	doc := accountDocument{
		ID:              a.ID,
		Name:            a.Name,
		Email:           strings.ToLower(a.Email),
		PasswordHash:    a.PasswordHash,
		LocationVersion: a.LocationVersion,
		Favorites:       nonNil(a.Favorites),
		VisitedSites:    nonNil(a.VisitedSites),
		Inventory:       make([]inventoryDocument, len(a.Inventory)),
		Version:         a.Version,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.Location != nil {
		p := toGeoPoint(*a.Location)
		doc.Location = &p
	}
	for i, e := range a.Inventory {
		history := make([]tradeEventDocument, len(e.TradeHistory))
		for j, ev := range e.TradeHistory {
			history[j] = tradeEventDocument(ev)
		}
		doc.Inventory[i] = inventoryDocument{
			SiteID:       e.SiteID,
			Count:        e.Count,
			CaughtAt:     e.CaughtAt,
			TradeHistory: history,
		}
	}
	return doc
}

func (d *accountDocument) account() *model.Account {
	a := &model.Account{
		ID:              d.ID,
		Name:            d.Name,
		Email:           d.Email,
		PasswordHash:    d.PasswordHash,
		LocationVersion: d.LocationVersion,
		Favorites:       nonNil(d.Favorites),
		VisitedSites:    nonNil(d.VisitedSites),
		Inventory:       make([]model.InventoryEntry, len(d.Inventory)),
		Version:         d.Version,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.Location != nil {
		p := d.Location.point()
		a.Location = &p
	}
	for i, e := range d.Inventory {
		history := make([]model.TradeEvent, len(e.TradeHistory))
		for j, ev := range e.TradeHistory {
			history[j] = model.TradeEvent(ev)
		}
		a.Inventory[i] = model.InventoryEntry{
			SiteID:       e.SiteID,
			Count:        e.Count,
			CaughtAt:     e.CaughtAt,
			TradeHistory: history,
		}
	}
	return a
}

type mongoAccounts struct {
	coll *mongo.Collection
}

func (r *mongoAccounts) Create(ctx context.Context, account *model.Account) error {
	doc := toAccountDocument(account)
	doc.Version = 1
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return mongoErr("create account", err)
	}
	account.Version = 1
	return nil
}

func (r *mongoAccounts) Get(ctx context.Context, id string) (*model.Account, error) {
	return r.findOne(ctx, "get account "+id, bson.M{"_id": id})
}

func (r *mongoAccounts) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	return r.findOne(ctx, "find account by email", bson.M{"email": strings.ToLower(email)})
}

// Save is a compare-and-swap on the version field. When nothing matched it
// tells a deleted account apart from a stale one.
func (r *mongoAccounts) Save(ctx context.Context, account *model.Account) error {
	doc := toAccountDocument(account)
	doc.Version = account.Version + 1

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": account.ID, "version": account.Version}, doc)
	if err != nil {
		return mongoErr("save account "+account.ID, err)
	}
	if res.MatchedCount == 0 {
		n, err := r.coll.CountDocuments(ctx, bson.M{"_id": account.ID})
		if err != nil {
			return mongoErr("save account "+account.ID, err)
		}
		if n == 0 {
			return fmt.Errorf("account %s: %w", account.ID, model.ErrNotFound)
		}
		return fmt.Errorf("account %s: %w", account.ID, model.ErrVersionConflict)
	}

	account.Version = doc.Version
	return nil
}

func (r *mongoAccounts) EmailTaken(ctx context.Context, email, exceptID string) (bool, error) {
	filter := bson.M{"email": strings.ToLower(email), "_id": bson.M{"$ne": exceptID}}
	n, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return false, mongoErr("check email", err)
	}
	return n > 0, nil
}

func (r *mongoAccounts) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	return n, mongoErr("count accounts", err)
}

func (r *mongoAccounts) findOne(ctx context.Context, op string, filter bson.M) (*model.Account, error) {
	var doc accountDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mongoErr(op, err)
	}
	return doc.account(), nil
}
