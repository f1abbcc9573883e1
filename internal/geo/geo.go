// Package geo computes great-circle distances for nearby discovery.
package geo

import (
	"math"
	"sort"
	"time"
)

// EarthRadiusMeters is the mean Earth radius used for distance calculations.
const EarthRadiusMeters = 6371000.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64
	Lng float64
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DistanceMeters returns the great-circle distance between a and b using the
// spherical law of cosines.
func DistanceMeters(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	cosC := math.Sin(lat1)*math.Sin(lat2) + math.Cos(lat1)*math.Cos(lat2)*math.Cos(dLng)
	// Rounding can push identical or antipodal points just outside [-1, 1].
	cosC = math.Max(-1, math.Min(1, cosC))

	return EarthRadiusMeters * math.Acos(cosC)
}

// Ranked pairs an item with its distance from the query point. Distance is
// nil when the item has no coordinates.
type Ranked[T any] struct {
	Item     T
	Distance *float64
}

// RankByDistance orders items by has-coordinates first, then ascending
// distance, then newest first. locate reports an item's coordinates and
// whether it has any; createdAt breaks ties.
func RankByDistance[T any](items []T, origin Point, locate func(T) (Point, bool), createdAt func(T) time.Time) []Ranked[T] {
	out := make([]Ranked[T], len(items))
	for i, item := range items {
		out[i] = Ranked[T]{Item: item}
		if p, ok := locate(item); ok {
			d := DistanceMeters(origin, p)
			out[i].Distance = &d
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Distance != nil) != (b.Distance != nil) {
			return a.Distance != nil
		}
		if a.Distance != nil && *a.Distance != *b.Distance {
			return *a.Distance < *b.Distance
		}
		return createdAt(a.Item).After(createdAt(b.Item))
	})
	return out
}
