package opt

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"routemate/internal/geo"
	"routemate/internal/model"
)

// Pool is the unassigned-order arena for one optimization run. Orders keep
// their input order; the orchestrator removes entries by id once a route is
// finalized, so the constructor can stay read-only over what it is handed.
type Pool struct {
	orders []model.Order
	taken  map[string]bool
}

// NewPool wraps orders in a pool without copying them.
func NewPool(orders []model.Order) *Pool {
	return &Pool{orders: orders, taken: make(map[string]bool, len(orders))}
}

// Remaining returns the unassigned orders in their original input order.
func (p *Pool) Remaining() []model.Order {
	out := make([]model.Order, 0, len(p.orders))
	for _, o := range p.orders {
		if !p.taken[o.ID] {
			out = append(out, o)
		}
	}
	return out
}

// Remove marks the given order ids as assigned.
func (p *Pool) Remove(ids []string) {
	for _, id := range ids {
		p.taken[id] = true
	}
}

// Len reports how many orders remain unassigned.
func (p *Pool) Len() int {
	n := 0
	for _, o := range p.orders {
		if !p.taken[o.ID] {
			n++
		}
	}
	return n
}

// IDs returns the ids of the remaining unassigned orders.
func (p *Pool) IDs() []string {
	out := []string{}
	for _, o := range p.orders {
		if !p.taken[o.ID] {
			out = append(out, o.ID)
		}
	}
	return out
}

// Plan is the result of one optimization run.
type Plan struct {
	Routes             []model.Route
	UnassignedOrderIDs []string
}

// Optimize assigns orders to vehicles and builds one scored route per
// vehicle that received at least one order, in vehicle input order.
//
// It builds a single distance matrix over all order locations, then for
// each vehicle constructs a nearest-neighbor route, improves it with 2-opt
// and computes its metrics. Scoring happens only after every route exists
// because the balance factor compares stop counts across the whole run.
// Orders no vehicle could fit are reported as unassigned, never dropped
// silently and never erroring.
func Optimize(orders []model.Order, vehicles []model.Vehicle, depot model.Location, weights map[string]float64, tenantID, routeDate string) Plan {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}

	locs := make([]model.Location, len(orders))
	index := make(map[string]int, len(orders))
	for i, o := range orders {
		locs[i] = o.Location
		index[o.ID] = i
	}
	matrix := geo.Matrix(locs)

	pool := NewPool(orders)
	now := time.Now().UTC().Format(time.RFC3339)
	routes := []model.Route{}

	for _, v := range vehicles {
		if pool.Len() == 0 {
			break
		}
		seq := BuildRoute(pool.Remaining(), depot, v)
		if len(seq) == 0 {
			continue
		}
		seq = Improve(seq, matrix, index)

		stops := make([]model.RouteStop, len(seq))
		ids := make([]string, len(seq))
		for i, o := range seq {
			stops[i] = model.RouteStop{
				Sequence:           i + 1,
				OrderID:            o.ID,
				Location:           o.Location,
				PlannedDurationMin: StopDurationMin,
				TimeWindow:         o.TimeWindow,
				ServiceType:        o.ServiceType,
				Items:              o.Items,
				Notes:              o.Notes,
			}
			ids[i] = o.ID
		}

		routes = append(routes, model.Route{
			ID:          uuid.New().String(),
			TenantID:    tenantID,
			Name:        fmt.Sprintf("Route %d", len(routes)+1),
			RouteDate:   routeDate,
			Status:      "optimized",
			VehicleID:   v.ID,
			Stops:       stops,
			Metrics:     ComputeMetrics(stops, v),
			CreatedAt:   now,
			OptimizedAt: now,
		})
		pool.Remove(ids)
	}

	for i := range routes {
		sc := ScoreRoute(routes[i], routes, weights)
		routes[i].Score = &sc
	}

	return Plan{Routes: routes, UnassignedOrderIDs: pool.IDs()}
}
