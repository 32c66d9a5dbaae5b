package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routemate/internal/model"
)

var depot = model.Location{Latitude: 40.0, Longitude: -75.0}

func TestOptimizeEmptyInputs(t *testing.T) {
	plan := Optimize(nil, []model.Vehicle{testVehicle(500)}, depot, nil, "t1", "2024-01-01")
	assert.Empty(t, plan.Routes)
	assert.Empty(t, plan.UnassignedOrderIDs)

	plan = Optimize([]model.Order{orderAt("a", 40.1, -75.0, 10)}, nil, depot, nil, "t1", "2024-01-01")
	assert.Empty(t, plan.Routes)
	assert.Equal(t, []string{"a"}, plan.UnassignedOrderIDs)
}

func TestOptimizeCapacityLeavesOrderUnassigned(t *testing.T) {
	orders := []model.Order{
		orderAt("light", 40.1, -75.0, 100),
		orderAt("heavy", 40.2, -75.0, 200),
	}
	plan := Optimize(orders, []model.Vehicle{testVehicle(250)}, depot, nil, "t1", "2024-01-01")

	require.Len(t, plan.Routes, 1)
	r := plan.Routes[0]
	require.Len(t, r.Stops, 1)
	assert.Equal(t, "light", r.Stops[0].OrderID)
	assert.Equal(t, []string{"heavy"}, plan.UnassignedOrderIDs)
}

func TestOptimizeBothOrdersFit(t *testing.T) {
	orders := []model.Order{
		orderAt("light", 40.1, -75.0, 100),
		orderAt("heavy", 40.2, -75.0, 200),
	}
	plan := Optimize(orders, []model.Vehicle{testVehicle(500)}, depot, nil, "t1", "2024-01-01")

	require.Len(t, plan.Routes, 1)
	r := plan.Routes[0]
	require.Len(t, r.Stops, 2)
	assert.Equal(t, 1, r.Stops[0].Sequence)
	assert.Equal(t, 2, r.Stops[1].Sequence)
	assert.Empty(t, plan.UnassignedOrderIDs)
	assert.Equal(t, "optimized", r.Status)
	assert.Equal(t, "Route 1", r.Name)
	assert.Equal(t, "veh-1", r.VehicleID)
	require.NotNil(t, r.Score)
	assert.Equal(t, Grade(r.Score.Total), r.Score.Grade)
}

func TestOptimizeInvariants(t *testing.T) {
	orders := []model.Order{
		orderAt("o1", 40.10, -75.00, 120),
		orderAt("o2", 40.90, -75.30, 150),
		orderAt("o3", 40.15, -75.05, 130),
		orderAt("o4", 40.85, -75.25, 140),
		orderAt("o5", 40.20, -75.10, 110),
		orderAt("o6", 40.80, -75.20, 160),
	}
	vehicles := []model.Vehicle{testVehicle(300), testVehicle(300), testVehicle(300)}
	plan := Optimize(orders, vehicles, depot, nil, "t1", "2024-01-01")

	seen := map[string]bool{}
	for _, r := range plan.Routes {
		// Sequence numbers are contiguous 1..N.
		for i, s := range r.Stops {
			assert.Equal(t, i+1, s.Sequence)
			assert.False(t, seen[s.OrderID], "order %s assigned twice", s.OrderID)
			seen[s.OrderID] = true
		}
		// Route load never exceeds the assigned vehicle's ceiling.
		load := 0.0
		for _, s := range r.Stops {
			load += s.TotalWeightLbs()
		}
		assert.LessOrEqual(t, load, 300.0)
		require.NotNil(t, r.Score)
	}
	// Every order is either routed or reported unassigned.
	for _, id := range plan.UnassignedOrderIDs {
		assert.False(t, seen[id])
		seen[id] = true
	}
	assert.Len(t, seen, len(orders))
}

func TestOptimizeVehiclesInInputOrder(t *testing.T) {
	orders := []model.Order{
		orderAt("o1", 40.1, -75.0, 100),
		orderAt("o2", 40.2, -75.0, 100),
		orderAt("o3", 40.3, -75.0, 100),
	}
	v1 := testVehicle(200)
	v1.ID = "first"
	v2 := testVehicle(200)
	v2.ID = "second"
	plan := Optimize(orders, []model.Vehicle{v1, v2}, depot, nil, "t1", "2024-01-01")

	require.Len(t, plan.Routes, 2)
	assert.Equal(t, "first", plan.Routes[0].VehicleID)
	assert.Equal(t, "second", plan.Routes[1].VehicleID)
	assert.Equal(t, "Route 1", plan.Routes[0].Name)
	assert.Equal(t, "Route 2", plan.Routes[1].Name)
}

func TestStatsFor(t *testing.T) {
	orders := []model.Order{
		orderAt("o1", 40.1, -75.0, 100),
		orderAt("o2", 40.2, -75.0, 100),
		orderAt("big", 40.3, -75.0, 999),
	}
	plan := Optimize(orders, []model.Vehicle{testVehicle(250)}, depot, nil, "t1", "2024-01-01")
	st := StatsFor(plan)
	assert.Equal(t, 1, st.Routes)
	assert.Equal(t, 2, st.AssignedOrders)
	assert.Equal(t, 1, st.UnassignedOrders)
	assert.Greater(t, st.MeanScore, 0.0)
}
