package domain

import "math"

const earthRadiusKm = 6371.0088

// Valid reports whether p is a finite coordinate inside the WGS84 ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// DistanceKm returns the great-circle (haversine) distance between a and b.
func DistanceKm(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// BoundingBox returns a lat/lon rectangle that contains every point within
// radiusKm of p. It is a prefilter for stores without native geo indexes; the
// exact test is still DistanceKm.
func BoundingBox(p Point, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	dLat := radiusKm / earthRadiusKm * 180 / math.Pi
	minLat = math.Max(-90, p.Lat-dLat)
	maxLat = math.Min(90, p.Lat+dLat)

	cos := math.Cos(p.Lat * math.Pi / 180)
	if cos < 1e-6 || maxLat >= 90 || minLat <= -90 {
		return minLat, maxLat, -180, 180
	}
	dLon := dLat / cos
	if dLon >= 180 {
		return minLat, maxLat, -180, 180
	}
	minLon = p.Lon - dLon
	maxLon = p.Lon + dLon
	if minLon < -180 || maxLon > 180 {
		// Crossing the antimeridian; fall back to the full longitude band.
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, minLon, maxLon
}
