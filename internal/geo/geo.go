// Package geo holds the geodesic helpers used by stores without a native
// spherical index.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	orbgeo "github.com/paulmach/orb/geo"

	"culturehub-api/internal/model"
)

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b model.Point) float64 {
	return orbgeo.DistanceHaversine(ToOrb(a), ToOrb(b))
}

// Within reports whether p lies within radius meters of center.
func Within(center, p model.Point, radius float64) bool {
	return Distance(center, p) <= radius
}

// Box is a lon/lat bounding box.
type Box struct {
	MinLon, MinLat, MaxLon, MaxLat float64
}

// Bound returns a box containing every point within radius meters of
// center. It is only an index prefilter: callers must still check Within.
func Bound(center model.Point, radius float64) Box {
	b := orbgeo.NewBoundAroundPoint(ToOrb(center), radius)
	return Box{
		MinLon: math.Max(b.Min.Lon(), -180),
		MinLat: math.Max(b.Min.Lat(), -90),
		MaxLon: math.Min(b.Max.Lon(), 180),
		MaxLat: math.Min(b.Max.Lat(), 90),
	}
}

// ValidPoint reports whether p has a longitude in [-180,180] and a latitude
// in [-90,90].
func ValidPoint(p model.Point) bool {
	return p.Lon >= -180 && p.Lon <= 180 && p.Lat >= -90 && p.Lat <= 90 &&
		!math.IsNaN(p.Lon) && !math.IsNaN(p.Lat)
}

// ToOrb converts a model point to an orb point.
func ToOrb(p model.Point) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// FromOrb converts an orb point to a model point.
func FromOrb(p orb.Point) model.Point {
	return model.Point{Lon: p.Lon(), Lat: p.Lat()}
}
