// Package importer converts GeoJSON open data into catalog sites.
package importer

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"culturehub-api/internal/geo"
	"culturehub-api/internal/model"
	"culturehub-api/pkg/uid"
)

// Values used when a feature carries no usable name or category. The guard
// keeps such sites out of user collections.
const (
	UnknownName        = "Unknown"
	UncategorizedLabel = "Uncategorized"
)

// categoryKeys is the property fallback chain for a site's category.
var categoryKeys = []string{
	"category", "Category", "tourism", "amenity", "artwork_type", "museum", "gallery", "theatre",
}

// Stats counts what happened to the features of one or more files.
type Stats struct {
	Features   int `json:"features"`
	Sites      int `json:"sites"`
	NotPoints  int `json:"not_points"`
	Duplicates int `json:"duplicates"`
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Features += other.Features
	s.Sites += other.Sites
	s.NotPoints += other.NotPoints
	s.Duplicates += other.Duplicates
}

// Importer parses GeoJSON files. Features with the same name, category and
// coordinates are imported once, across every file read by the same
// Importer.
type Importer struct {
	seen map[string]struct{}
}

// New creates an importer.
func New() *Importer {
	return &Importer{seen: make(map[string]struct{})}
}

// Parse reads a FeatureCollection and returns its new sites.
func (im *Importer) Parse(r io.Reader) ([]model.Site, Stats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("read geojson: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("parse geojson: %w", err)
	}

	stats := Stats{Features: len(fc.Features)}
	sites := make([]model.Site, 0, len(fc.Features))
	for _, f := range fc.Features {
		site, ok := FeatureToSite(f)
		if !ok {
			stats.NotPoints++
			continue
		}
		if _, dup := im.seen[site.ID]; dup {
			stats.Duplicates++
			continue
		}
		im.seen[site.ID] = struct{}{}
		sites = append(sites, site)
	}
	stats.Sites = len(sites)
	return sites, stats, nil
}

// FeatureToSite converts a Point feature. Other geometries and points with
// out-of-range coordinates are rejected.
func FeatureToSite(f *geojson.Feature) (model.Site, bool) {
	if f == nil || f.Geometry == nil {
		return model.Site{}, false
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return model.Site{}, false
	}
	location := geo.FromOrb(pt)
	if !geo.ValidPoint(location) {
		return model.Site{}, false
	}

	props := f.Properties
	if props == nil {
		props = geojson.Properties{}
	}

	name := firstString(props, "name", "Name")
	if name == "" {
		name = UnknownName
	}
	category := firstString(props, categoryKeys...)
	if category == "" {
		category = UncategorizedLabel
	}

	return model.Site{
		ID:          SiteID(name, category, location),
		Name:        name,
		Category:    category,
		Description: firstString(props, "description", "Description"),
		Location:    location,
		Properties:  map[string]interface{}(props),
	}, true
}

// SiteID derives the id of a site from its natural key, so re-importing
// the same data never creates duplicates.
func SiteID(name, category string, p model.Point) string {
	key := strings.Join([]string{
		name,
		category,
		strconv.FormatFloat(p.Lon, 'f', -1, 64),
		strconv.FormatFloat(p.Lat, 'f', -1, 64),
	}, "|")
	return uid.FromKey(key)
}

// firstString returns the first non-blank string value among keys.
func firstString(props geojson.Properties, keys ...string) string {
	for _, k := range keys {
		if v, ok := props[k].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}
