package utils

import "math"

const (
	EarthRadiusKm = 6371.0
	// AverageSpeedKmh is the travel speed assumed for straight-line ETA estimates.
	AverageSpeedKmh = 40.0
)

// HaversineKm returns the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	phi1 := toRadians(lat1)
	phi2 := toRadians(lat2)
	dPhi := toRadians(lat2 - lat1)
	dLambda := toRadians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// TravelMinutes converts a distance into minutes at AverageSpeedKmh.
func TravelMinutes(distanceKm float64) float64 {
	if distanceKm <= 0 {
		return 0
	}
	return distanceKm / AverageSpeedKmh * 60
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
