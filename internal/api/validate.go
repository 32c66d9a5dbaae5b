package api

import (
	"fmt"

	"routemate/internal/model"
	"routemate/internal/opt"
)

func validLocation(l *model.Location) error {
	if l == nil {
		return nil
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("latitude must be in [-90,90]")
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("longitude must be in [-180,180]")
	}
	return nil
}

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	if req.Depot == nil {
		return fmt.Errorf("depot is required")
	}
	if err := validLocation(req.Depot); err != nil {
		return fmt.Errorf("depot: %w", err)
	}
	if req.Weights != nil {
		allowed := map[string]struct{}{}
		for k := range opt.DefaultWeights() {
			allowed[k] = struct{}{}
		}
		for k, v := range req.Weights {
			if _, ok := allowed[k]; !ok {
				return fmt.Errorf("unknown weight key: %s (allowed: distance,time,capacity,timeWindows,density,balance)", k)
			}
			if v < 0 {
				return fmt.Errorf("weight %s must be >= 0", k)
			}
		}
	}
	return nil
}

func validateOrders(orders []model.OrderIn) error {
	for i, o := range orders {
		if o.Location == nil {
			return fmt.Errorf("orders[%d]: location is required", i)
		}
		if err := validLocation(o.Location); err != nil {
			return fmt.Errorf("orders[%d]: %w", i, err)
		}
		for j, it := range o.Items {
			if it.WeightLbs < 0 {
				return fmt.Errorf("orders[%d].items[%d]: weightLbs must be >= 0", i, j)
			}
		}
	}
	return nil
}

func validateVehicles(vehicles []model.VehicleIn) error {
	for i, v := range vehicles {
		if v.Capacity.WeightLbs <= 0 {
			return fmt.Errorf("vehicles[%d]: capacity.weightLbs must be > 0", i)
		}
		if v.Specifications.MPG < 0 {
			return fmt.Errorf("vehicles[%d]: specifications.mpg must be >= 0", i)
		}
		if v.Specifications.CostPerMile < 0 {
			return fmt.Errorf("vehicles[%d]: specifications.costPerMile must be >= 0", i)
		}
	}
	return nil
}
