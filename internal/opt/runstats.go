package opt

import "sync"

// RunStats summarizes one optimization run for admin views.
type RunStats struct {
	Routes             int     `json:"routes"`
	AssignedOrders     int     `json:"assignedOrders"`
	UnassignedOrders   int     `json:"unassignedOrders"`
	TotalDistanceMiles float64 `json:"totalDistanceMiles"`
	MeanScore          float64 `json:"meanScore"`
}

// StatsFor derives run statistics from a finished plan.
func StatsFor(plan Plan) RunStats {
	st := RunStats{
		Routes:           len(plan.Routes),
		UnassignedOrders: len(plan.UnassignedOrderIDs),
	}
	scoreSum := 0.0
	for _, r := range plan.Routes {
		st.AssignedOrders += len(r.Stops)
		st.TotalDistanceMiles += r.Metrics.TotalDistanceMiles
		if r.Score != nil {
			scoreSum += r.Score.Total
		}
	}
	if len(plan.Routes) > 0 {
		st.MeanScore = round2(scoreSum / float64(len(plan.Routes)))
	}
	return st
}

type runKey struct {
	Tenant    string
	RouteDate string
}

var (
	runMu   sync.Mutex
	runByID = map[runKey]RunStats{}
)

// RecordRun keeps the latest run stats for a tenant and date as an
// in-process fallback when the store has none persisted.
func RecordRun(tenant, routeDate string, st RunStats) {
	runMu.Lock()
	runByID[runKey{Tenant: tenant, RouteDate: routeDate}] = st
	runMu.Unlock()
}

// GetRun returns the recorded stats for a tenant and date, if any.
func GetRun(tenant, routeDate string) (RunStats, bool) {
	runMu.Lock()
	defer runMu.Unlock()
	st, ok := runByID[runKey{Tenant: tenant, RouteDate: routeDate}]
	return st, ok
}
