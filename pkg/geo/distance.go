// Package geo provides great-circle helpers for geofence evaluation.
package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used by DistanceMeters.
const EarthRadiusMeters = 6371e3

// DistanceMeters returns the haversine distance in meters between two
// coordinates given in degrees. Out of range inputs are not rejected.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// Within reports whether the point lies inside the circle. The boundary counts as inside.
func Within(centerLat, centerLon, radiusMeters, lat, lon float64) (float64, bool) {
	d := DistanceMeters(centerLat, centerLon, lat, lon)
	return d, d <= radiusMeters
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
