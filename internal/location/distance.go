// Package location handles distance math and the fire station roster
package location

import (
	"math"

	"github.com/golang/geo/s2"
)

// EarthRadiusMeters is the WGS84 semi-major axis used when the model was trained
const EarthRadiusMeters = 6378137.0

// Haversine calculates the great-circle distance in meters between two lat/lng points
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)

	lat1Rad := p1.Lat.Radians()
	lat2Rad := p2.Lat.Radians()
	deltaLat := lat2Rad - lat1Rad
	deltaLng := p2.Lng.Radians() - p1.Lng.Radians()

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	// rounding can leave a just outside [0,1] near antipodes
	a = math.Min(1, math.Max(0, a))

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// ValidCoordinates reports whether lat/lng are finite and inside [-90,90] x [-180,180]
func ValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return s2.LatLngFromDegrees(lat, lng).IsValid()
}
