package geo

import "math"

const earthRadiusKm = 6371.0088

type Point struct {
	Lat float64
	Lng float64
}

// Valid reports whether p is a real coordinate.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// DistanceKm is the haversine great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	lat1 := radians(a.Lat)
	lat2 := radians(b.Lat)
	dLat := lat2 - lat1
	dLng := radians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BoundingBox returns the lat/lng rectangle enclosing a circle of radiusKm around center.
// It is used to prefilter rows in SQL before computing exact distances.
func BoundingBox(center Point, radiusKm float64) (lo, hi Point) {
	angular := radiusKm / earthRadiusKm
	dLat := angular * 180 / math.Pi
	minLat := math.Max(-90, center.Lat-dLat)
	maxLat := math.Min(90, center.Lat+dLat)

	// A circle reaching a pole covers every longitude.
	if minLat <= -90 || maxLat >= 90 {
		return Point{minLat, -180}, Point{maxLat, 180}
	}
	// Longitude of the circle's tangent meridians.
	dLng := math.Asin(math.Sin(angular)/math.Cos(radians(center.Lat))) * 180 / math.Pi
	minLng := center.Lng - dLng
	maxLng := center.Lng + dLng
	// Crossing the antimeridian widens the box to all longitudes.
	if minLng < -180 || maxLng > 180 {
		minLng, maxLng = -180, 180
	}
	return Point{minLat, minLng}, Point{maxLat, maxLng}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
