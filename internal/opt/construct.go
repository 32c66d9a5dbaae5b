package opt

import (
	"math"

	"routemate/internal/geo"
	"routemate/internal/model"
)

// BuildRoute greedily builds one vehicle's order sequence from the pool
// using nearest-neighbor selection under the vehicle's weight ceiling.
//
// At each step the nearest still-fitting order wins; on equal distance the
// first candidate in pool order is kept, so the result is deterministic for
// a fixed pool ordering. The pool itself is never mutated here; the
// orchestrator removes consumed orders after the route is finalized.
func BuildRoute(pool []model.Order, start model.Location, v model.Vehicle) []model.Order {
	assigned := make([]model.Order, 0, len(pool))
	taken := make(map[string]bool, len(pool))
	cur := start
	load := 0.0
	for {
		best := -1
		bestDist := math.MaxFloat64
		for i := range pool {
			o := pool[i]
			if taken[o.ID] {
				continue
			}
			if load+o.TotalWeightLbs() > v.Capacity.WeightLbs {
				continue
			}
			if d := geo.Miles(cur, o.Location); d < bestDist {
				bestDist = d
				best = i
			}
		}
		if best == -1 {
			break
		}
		o := pool[best]
		assigned = append(assigned, o)
		taken[o.ID] = true
		load += o.TotalWeightLbs()
		cur = o.Location
	}
	return assigned
}
