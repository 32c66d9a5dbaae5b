package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routemate/internal/model"
)

func TestMilesSymmetryAndIdentity(t *testing.T) {
	pairs := []struct{ a, b model.Location }{
		{model.Location{Latitude: 40.7128, Longitude: -74.006}, model.Location{Latitude: 34.0522, Longitude: -118.2437}},
		{model.Location{Latitude: -33.8688, Longitude: 151.2093}, model.Location{Latitude: 51.5074, Longitude: -0.1278}},
		{model.Location{Latitude: 0, Longitude: 0}, model.Location{Latitude: 0, Longitude: 179}},
	}
	for _, p := range pairs {
		assert.InDelta(t, Miles(p.a, p.b), Miles(p.b, p.a), 1e-9)
		assert.Zero(t, Miles(p.a, p.a))
		assert.Zero(t, Miles(p.b, p.b))
	}
}

func TestMilesOneDegreeAtEquator(t *testing.T) {
	a := model.Location{Latitude: 0, Longitude: 0}
	b := model.Location{Latitude: 0, Longitude: 1}
	assert.InDelta(t, 69.17, Miles(a, b), 0.1)
}

func TestMatrix(t *testing.T) {
	locs := []model.Location{
		{Latitude: 40.0, Longitude: -75.0},
		{Latitude: 41.0, Longitude: -75.5},
		{Latitude: 39.5, Longitude: -74.8},
	}
	m := Matrix(locs)
	require.Len(t, m, 3)
	for i := 0; i < 3; i++ {
		require.Len(t, m[i], 3)
		assert.Zero(t, m[i][i])
		for j := 0; j < 3; j++ {
			assert.Equal(t, m[i][j], m[j][i])
		}
	}
	assert.InDelta(t, Miles(locs[0], locs[1]), m[0][1], 1e-9)
}
