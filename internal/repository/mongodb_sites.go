package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"culturehub-api/internal/model"
)

type siteDocument struct {
	ID          string                 `bson:"_id"`
	Name        string                 `bson:"name"`
	Category    string                 `bson:"category"`
	Description string                 `bson:"description,omitempty"`
	Location    geoPoint               `bson:"location"`
	Properties  map[string]interface{} `bson:"properties,omitempty"`
}

func toSiteDocument(s *model.Site) siteDocument {
	return siteDocument{
		ID:          s.ID,
		Name:        s.Name,
		Category:    s.Category,
		Description: s.Description,
		Location:    toGeoPoint(s.Location),
		Properties:  s.Properties,
	}
}

func (d *siteDocument) site() model.Site {
	return model.Site{
		ID:          d.ID,
		Name:        d.Name,
		Category:    d.Category,
		Description: d.Description,
		Location:    d.Location.point(),
		Properties:  d.Properties,
	}
}

type mongoSites struct {
	coll *mongo.Collection
}

// FindWithinRadius uses $nearSphere, which measures great-circle distance
// in meters against the 2dsphere index and sorts nearest first.
func (r *mongoSites) FindWithinRadius(ctx context.Context, center model.Point, radius float64) ([]model.Site, error) {
	filter := bson.M{
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry":    toGeoPoint(center),
				"$maxDistance": radius,
			},
		},
	}
	return r.find(ctx, "find sites within radius", filter)
}

func (r *mongoSites) FindByID(ctx context.Context, id string) (*model.Site, error) {
	var doc siteDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, mongoErr("find site "+id, err)
	}
	site := doc.site()
	return &site, nil
}

func (r *mongoSites) FindByIDs(ctx context.Context, ids []string) ([]model.Site, error) {
	if len(ids) == 0 {
		return []model.Site{}, nil
	}

	found, err := r.find(ctx, "find sites by ids", bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return orderByIDs(found, ids), nil
}

func (r *mongoSites) List(ctx context.Context, filter SiteFilter) ([]model.Site, error) {
	query := bson.M{}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}})
	if filter.Category != "" {
		query["category"] = filter.Category
		opts.SetCollation(&options.Collation{Locale: "en", Strength: 2})
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	return r.find(ctx, "list sites", query, opts)
}

// UpsertMany inserts sites not yet stored in one unordered bulk write.
func (r *mongoSites) UpsertMany(ctx context.Context, sites []model.Site) (int, error) {
	if len(sites) == 0 {
		return 0, nil
	}

	models := make([]mongo.WriteModel, len(sites))
	for i := range sites {
		doc := toSiteDocument(&sites[i])
		models[i] = mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": doc.ID}).
			SetUpdate(bson.M{"$setOnInsert": doc}).
			SetUpsert(true)
	}

	res, err := r.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return 0, mongoErr("upsert sites", err)
	}
	return int(res.UpsertedCount), nil
}

func (r *mongoSites) Count(ctx context.Context) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{})
	return n, mongoErr("count sites", err)
}

func (r *mongoSites) find(ctx context.Context, op string, filter interface{}, opts ...*options.FindOptions) ([]model.Site, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, mongoErr(op, err)
	}
	defer cur.Close(ctx)

	var docs []siteDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, mongoErr(op, err)
	}

	sites := make([]model.Site, len(docs))
	for i := range docs {
		sites[i] = docs[i].site()
	}
	return sites, nil
}

// orderByIDs returns the sites in the order of ids, skipping unknown ids.
func orderByIDs(sites []model.Site, ids []string) []model.Site {
	byID := make(map[string]model.Site, len(sites))
	for _, s := range sites {
		byID[s.ID] = s
	}
	out := make([]model.Site, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			out = append(out, s)
		}
	}
	return out
}
