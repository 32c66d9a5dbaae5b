// Package geo provides great-circle distance helpers for the optimizer.
package geo

import (
	"math"

	"routemate/internal/model"
)

const earthRadiusMiles = 3959.0

// Miles returns the Haversine great-circle distance between two locations
// in statute miles.
func Miles(a, b model.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMiles * math.Asin(math.Sqrt(h))
}

// Matrix computes the symmetric pairwise distance matrix for locs.
// The diagonal is zero and matrix[i][j] == matrix[j][i].
func Matrix(locs []model.Location) [][]float64 {
	n := len(locs)
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d := Miles(locs[i], locs[j])
			m[i][j] = d
			m[j][i] = d
		}
	}
	return m
}
