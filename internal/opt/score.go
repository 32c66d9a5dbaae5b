package opt

import (
	"math"

	"routemate/internal/geo"
	"routemate/internal/model"
)

const (
	// capacityScore and timeWindowScore are not yet computed from actual
	// utilization / window violations; they are fixed until those signals
	// are wired in.
	capacityScore   = 80.0
	timeWindowScore = 100.0

	// targetShiftMin is the reference 8-hour shift for the time factor.
	targetShiftMin = 480.0
	// roadFactor scales straight-line distance toward a road-network lower bound.
	roadFactor = 1.2
	// densityScale converts stops-per-mile into a 0-100 score.
	densityScale = 20.0
)

// DefaultWeights is the scoring-weight mapping used when a tenant has no
// configuration of its own. The weights sum to 1.0.
func DefaultWeights() map[string]float64 {
	return map[string]float64{
		"distance":    0.25,
		"time":        0.20,
		"capacity":    0.15,
		"timeWindows": 0.15,
		"density":     0.15,
		"balance":     0.10,
	}
}

// ScoreRoute computes the composite quality score for one route. The full
// route set of the same run is required because the balance factor compares
// stop counts across routes. Weights are applied as given; callers own
// keeping them on a meaningful scale.
func ScoreRoute(r model.Route, all []model.Route, weights map[string]float64) model.OptimizationScore {
	s := model.OptimizationScore{
		Distance:    distanceScore(r),
		Time:        timeScore(r),
		Capacity:    capacityScore,
		TimeWindows: timeWindowScore,
		Density:     densityScore(r),
		Balance:     balanceScore(r, all),
	}
	total := weights["distance"]*s.Distance +
		weights["time"]*s.Time +
		weights["capacity"]*s.Capacity +
		weights["timeWindows"]*s.TimeWindows +
		weights["density"]*s.Density +
		weights["balance"]*s.Balance
	s.Total = math.Round(total*10) / 10
	s.Grade = Grade(s.Total)
	return s
}

// Grade maps a total score to its letter grade.
func Grade(total float64) string {
	switch {
	case total >= 90:
		return "A"
	case total >= 80:
		return "B"
	case total >= 70:
		return "C"
	case total >= 60:
		return "D"
	default:
		return "F"
	}
}

// distanceScore rewards routes whose actual distance is close to the
// road-adjusted straight-line lower bound.
func distanceScore(r model.Route) float64 {
	if len(r.Stops) == 0 || r.Metrics.TotalDistanceMiles <= 0 {
		return 100
	}
	straight := 0.0
	for i := 0; i+1 < len(r.Stops); i++ {
		straight += geo.Miles(r.Stops[i].Location, r.Stops[i+1].Location)
	}
	return math.Min(100, straight*roadFactor/r.Metrics.TotalDistanceMiles*100)
}

// timeScore compares the route duration against a standard 8-hour shift.
func timeScore(r model.Route) float64 {
	if r.Metrics.TotalDurationMin <= 0 {
		return 100
	}
	ratio := targetShiftMin / float64(r.Metrics.TotalDurationMin) * 100
	return math.Max(0, math.Min(100, ratio))
}

// densityScore scores stops-per-mile; tight clusters score higher.
func densityScore(r model.Route) float64 {
	if r.Metrics.TotalDistanceMiles <= 0 {
		return 0
	}
	return math.Min(100, float64(r.Metrics.StopCount)/r.Metrics.TotalDistanceMiles*densityScale)
}

// balanceScore compares this route's stop count to the run mean, scoring
// 100 minus the percentage deviation, floored at zero.
func balanceScore(r model.Route, all []model.Route) float64 {
	if len(all) <= 1 {
		return 100
	}
	total := 0
	for _, rt := range all {
		total += len(rt.Stops)
	}
	mean := float64(total) / float64(len(all))
	if mean <= 0 {
		return 100
	}
	dev := math.Abs(float64(len(r.Stops))-mean) / mean * 100
	return math.Max(0, 100-dev)
}
