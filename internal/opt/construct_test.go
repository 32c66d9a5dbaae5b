package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routemate/internal/model"
)

func testVehicle(capLbs float64) model.Vehicle {
	return model.Vehicle{
		ID:             "veh-1",
		Capacity:       model.VehicleCapacity{WeightLbs: capLbs},
		Specifications: model.VehicleSpecs{CostPerMile: 0.65, MPG: 10},
	}
}

func orderAt(id string, lat, lng, weightLbs float64) model.Order {
	return model.Order{
		ID:       id,
		Location: model.Location{Latitude: lat, Longitude: lng},
		Items:    []model.LineItem{{WeightLbs: weightLbs}},
	}
}

func TestBuildRoutePicksNearestFirst(t *testing.T) {
	depot := model.Location{Latitude: 40.0, Longitude: -75.0}
	pool := []model.Order{
		orderAt("far", 41.0, -75.0, 10),
		orderAt("near", 40.1, -75.0, 10),
		orderAt("mid", 40.5, -75.0, 10),
	}
	seq := BuildRoute(pool, depot, testVehicle(1000))
	require.Len(t, seq, 3)
	assert.Equal(t, "near", seq[0].ID)
	assert.Equal(t, "mid", seq[1].ID)
	assert.Equal(t, "far", seq[2].ID)
}

func TestBuildRouteRespectsCapacity(t *testing.T) {
	depot := model.Location{Latitude: 40.0, Longitude: -75.0}
	pool := []model.Order{
		orderAt("a", 40.1, -75.0, 100),
		orderAt("b", 40.2, -75.0, 200),
	}
	seq := BuildRoute(pool, depot, testVehicle(250))
	require.Len(t, seq, 1)
	assert.Equal(t, "a", seq[0].ID)

	total := 0.0
	for _, o := range seq {
		total += o.TotalWeightLbs()
	}
	assert.LessOrEqual(t, total, 250.0)
}

func TestBuildRouteSkipsOversizeOrderAndContinues(t *testing.T) {
	depot := model.Location{Latitude: 40.0, Longitude: -75.0}
	// Nearest order alone exceeds capacity; the farther fitting order still loads.
	pool := []model.Order{
		orderAt("oversize", 40.05, -75.0, 900),
		orderAt("fits", 40.5, -75.0, 50),
	}
	seq := BuildRoute(pool, depot, testVehicle(100))
	require.Len(t, seq, 1)
	assert.Equal(t, "fits", seq[0].ID)
}

func TestBuildRouteTieBreaksByPoolOrder(t *testing.T) {
	depot := model.Location{Latitude: 0, Longitude: 0}
	// Two orders equidistant from the depot; the first in pool order wins.
	pool := []model.Order{
		orderAt("east", 0, 1, 10),
		orderAt("west", 0, -1, 10),
	}
	seq := BuildRoute(pool, depot, testVehicle(100))
	require.Len(t, seq, 2)
	assert.Equal(t, "east", seq[0].ID)
}

func TestBuildRouteEmptyPool(t *testing.T) {
	depot := model.Location{Latitude: 0, Longitude: 0}
	assert.Empty(t, BuildRoute(nil, depot, testVehicle(100)))
}

func TestBuildRouteDoesNotMutatePool(t *testing.T) {
	depot := model.Location{Latitude: 40.0, Longitude: -75.0}
	pool := []model.Order{
		orderAt("a", 40.1, -75.0, 10),
		orderAt("b", 40.2, -75.0, 10),
	}
	_ = BuildRoute(pool, depot, testVehicle(100))
	require.Len(t, pool, 2)
	assert.Equal(t, "a", pool[0].ID)
	assert.Equal(t, "b", pool[1].ID)
}
