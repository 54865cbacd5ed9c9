package topology

import "math"

const earthRadius = 6371000 // meters

// Distance returns the great-circle distance between two points in whole meters.
// Coincident points yield 1 so every edge weight stays positive.
func Distance(lat1, lon1, lat2, lon2 float64) int {
	meters := math.RoundToEven(haversineDistance(lat1, lon1, lat2, lon2))
	if meters < 1 {
		return 1
	}
	return int(meters)
}

// haversineDistance calculates the distance between two points in meters
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
