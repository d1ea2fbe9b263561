// README: Great-circle helpers for coordinates.
package types

import "math"

const earthRadiusKm = 6371.0

// Valid reports whether p is a real coordinate.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceKm returns the haversine distance between p and q.
func (p Point) DistanceKm(q Point) float64 {
	dLat := degreesToRadians(q.Lat - p.Lat)
	dLng := degreesToRadians(q.Lng - p.Lng)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(degreesToRadians(p.Lat))*math.Cos(degreesToRadians(q.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}
