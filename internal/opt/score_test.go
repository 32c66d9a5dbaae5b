package opt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routemate/internal/model"
)

func routeWithStops(n int, distMiles float64, durMin int) model.Route {
	stops := make([]model.RouteStop, n)
	for i := range stops {
		stops[i] = stopAt(i+1, 40.0+float64(i)*0.01, -75.0)
	}
	return model.Route{
		Stops: stops,
		Metrics: model.RouteMetrics{
			TotalDistanceMiles: distMiles,
			TotalDurationMin:   durMin,
			StopCount:          n,
		},
	}
}

func TestGradeBoundaries(t *testing.T) {
	assert.Equal(t, "A", Grade(90.0))
	assert.Equal(t, "B", Grade(89.9))
	assert.Equal(t, "B", Grade(80.0))
	assert.Equal(t, "C", Grade(79.9))
	assert.Equal(t, "C", Grade(70.0))
	assert.Equal(t, "D", Grade(69.9))
	assert.Equal(t, "D", Grade(60.0))
	assert.Equal(t, "F", Grade(59.9))
}

func TestBalanceScoreAcrossRun(t *testing.T) {
	// Stop counts [2, 2, 8]: mean 4; the big route deviates by 100%.
	all := []model.Route{
		routeWithStops(2, 5, 60),
		routeWithStops(2, 5, 60),
		routeWithStops(8, 20, 240),
	}
	assert.InDelta(t, 50.0, balanceScore(all[0], all), 1e-9)
	assert.InDelta(t, 50.0, balanceScore(all[1], all), 1e-9)
	assert.InDelta(t, 0.0, balanceScore(all[2], all), 1e-9)
}

func TestBalanceScoreSingleRoute(t *testing.T) {
	r := routeWithStops(5, 10, 120)
	assert.Equal(t, 100.0, balanceScore(r, []model.Route{r}))
}

func TestDensityScore(t *testing.T) {
	assert.Zero(t, densityScore(routeWithStops(3, 0, 60)))

	// 5 stops over 2 miles: 2.5 stops per mile * 20 = 50.
	assert.InDelta(t, 50.0, densityScore(routeWithStops(5, 2, 60)), 1e-9)

	// Density is capped at 100.
	assert.Equal(t, 100.0, densityScore(routeWithStops(50, 1, 60)))
}

func TestTimeScore(t *testing.T) {
	assert.Equal(t, 100.0, timeScore(routeWithStops(0, 0, 0)))
	// A 16-hour route scores half of the 8-hour target.
	assert.InDelta(t, 50.0, timeScore(routeWithStops(3, 10, 960)), 1e-9)
	assert.Equal(t, 100.0, timeScore(routeWithStops(3, 10, 240)))
}

func TestScoreRoutePlaceholdersAndTotal(t *testing.T) {
	r := routeWithStops(4, 3, 120)
	sc := ScoreRoute(r, []model.Route{r}, DefaultWeights())

	assert.Equal(t, capacityScore, sc.Capacity)
	assert.Equal(t, timeWindowScore, sc.TimeWindows)
	require.NotEmpty(t, sc.Grade)
	assert.GreaterOrEqual(t, sc.Total, 0.0)
	assert.LessOrEqual(t, sc.Total, 100.0)

	// Weighted total recomputed by hand.
	w := DefaultWeights()
	want := w["distance"]*sc.Distance + w["time"]*sc.Time + w["capacity"]*sc.Capacity +
		w["timeWindows"]*sc.TimeWindows + w["density"]*sc.Density + w["balance"]*sc.Balance
	assert.InDelta(t, want, sc.Total, 0.05)
	assert.Equal(t, Grade(sc.Total), sc.Grade)
}
