package opt

import (
	"math"

	"routemate/internal/geo"
	"routemate/internal/model"
)

const (
	// StopDurationMin is the fixed planned service time per stop.
	StopDurationMin = 15
	// avgSpeedMph is the assumed average travel speed between stops.
	avgSpeedMph = 30.0
	// driverHourlyRate is the labor cost used for the estimated route cost.
	driverHourlyRate = 25.0
)

// ComputeMetrics derives the per-route metrics snapshot from a finalized
// stop sequence and the vehicle's cost specification. With zero or one stop
// total distance is zero and duration collapses to the last stop's own
// planned time.
func ComputeMetrics(stops []model.RouteStop, v model.Vehicle) model.RouteMetrics {
	distMiles := 0.0
	durMin := 0.0
	for i := 0; i+1 < len(stops); i++ {
		leg := geo.Miles(stops[i].Location, stops[i+1].Location)
		distMiles += leg
		durMin += float64(stops[i].PlannedDurationMin) + leg/avgSpeedMph*60
	}
	if n := len(stops); n > 0 {
		durMin += float64(stops[n-1].PlannedDurationMin)
	}

	fuelGallons := 0.0
	fuelCost := 0.0
	if v.Specifications.MPG > 0 {
		fuelGallons = distMiles / v.Specifications.MPG
		fuelCost = distMiles * v.Specifications.CostPerMile / v.Specifications.MPG
	}
	driverCost := durMin / 60 * driverHourlyRate

	avgStop := 0
	if len(stops) > 0 {
		avgStop = stops[0].PlannedDurationMin
	}

	return model.RouteMetrics{
		TotalDistanceMiles: round2(distMiles),
		TotalDurationMin:   int(math.Round(durMin)),
		StopCount:          len(stops),
		EstimatedCost:      round2(fuelCost + driverCost),
		FuelGallons:        round2(fuelGallons),
		AvgStopTimeMin:     avgStop,
	}
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
