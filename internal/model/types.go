package model

// Core domain types shared by the optimizer, the store, and the API.

// Location is an immutable WGS84 coordinate pair.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// LineItem is one weighted item within an order. Item weight is the only
// figure the optimizer uses for capacity checks.
type LineItem struct {
	Name      string  `json:"name,omitempty"`
	WeightLbs float64 `json:"weightLbs"`
}

// TimeWindow is an advisory delivery window. It is carried through to stops
// but not enforced as a hard constraint.
type TimeWindow struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Order is one pickup/delivery request awaiting assignment.
type Order struct {
	ID                  string      `json:"id"`
	TenantID            string      `json:"tenantId,omitempty"`
	CustomerID          string      `json:"customerId,omitempty"`
	Location            Location    `json:"location"`
	Items               []LineItem  `json:"items"`
	TimeWindow          *TimeWindow `json:"timeWindow,omitempty"`
	ServiceType         string      `json:"serviceType,omitempty"`
	Notes               string      `json:"notes,omitempty"`
	SpecialRequirements string      `json:"specialRequirements,omitempty"`
	Status              string      `json:"status,omitempty"`
}

// TotalWeightLbs sums the order's item weights.
func (o Order) TotalWeightLbs() float64 {
	w := 0.0
	for _, it := range o.Items {
		w += it.WeightLbs
	}
	return w
}

// VehicleCapacity is the vehicle's weight ceiling.
type VehicleCapacity struct {
	WeightLbs float64 `json:"weightLbs"`
}

// VehicleSpecs holds the vehicle's cost characteristics.
type VehicleSpecs struct {
	CostPerMile float64 `json:"costPerMile"`
	MPG         float64 `json:"mpg"`
}

// Vehicle is a read-only input to the optimizer.
type Vehicle struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenantId,omitempty"`
	Name           string          `json:"name,omitempty"`
	Capacity       VehicleCapacity `json:"capacity"`
	Specifications VehicleSpecs    `json:"specifications"`
}

// RouteStop is one order placed into a route. Immutable once created.
type RouteStop struct {
	Sequence           int         `json:"sequence"`
	OrderID            string      `json:"orderId"`
	Location           Location    `json:"location"`
	PlannedDurationMin int         `json:"plannedDurationMin"`
	TimeWindow         *TimeWindow `json:"timeWindow,omitempty"`
	ServiceType        string      `json:"serviceType,omitempty"`
	Items              []LineItem  `json:"items,omitempty"`
	Notes              string      `json:"notes,omitempty"`
}

// TotalWeightLbs sums the stop's item weights.
func (s RouteStop) TotalWeightLbs() float64 {
	w := 0.0
	for _, it := range s.Items {
		w += it.WeightLbs
	}
	return w
}

// RouteMetrics is a derived, read-only snapshot computed once per route
// from its finalized stop list.
type RouteMetrics struct {
	TotalDistanceMiles float64 `json:"totalDistanceMiles"`
	TotalDurationMin   int     `json:"totalDurationMin"`
	StopCount          int     `json:"stopCount"`
	EstimatedCost      float64 `json:"estimatedCost"`
	FuelGallons        float64 `json:"fuelGallons"`
	AvgStopTimeMin     int     `json:"avgStopTimeMin"`
}

// OptimizationScore is the composite route quality score: six component
// scores in [0,100], a weighted total, and a letter grade.
type OptimizationScore struct {
	Distance    float64 `json:"distance"`
	Time        float64 `json:"time"`
	Capacity    float64 `json:"capacity"`
	TimeWindows float64 `json:"timeWindows"`
	Density     float64 `json:"density"`
	Balance     float64 `json:"balance"`
	Total       float64 `json:"total"`
	Grade       string  `json:"grade"`
}

// Route is the fundamental optimizer output: an ordered stop sequence for
// one vehicle plus derived metrics and score.
type Route struct {
	ID          string             `json:"id"`
	TenantID    string             `json:"tenantId"`
	Name        string             `json:"name"`
	RouteDate   string             `json:"routeDate"`
	Status      string             `json:"status"`
	VehicleID   string             `json:"vehicleId"`
	Stops       []RouteStop        `json:"stops"`
	Metrics     RouteMetrics       `json:"metrics"`
	Score       *OptimizationScore `json:"optimizationScore,omitempty"`
	CreatedAt   string             `json:"createdAt,omitempty"`
	OptimizedAt string             `json:"optimizedAt,omitempty"`
}

// OrderIn is the API payload for creating orders.
type OrderIn struct {
	CustomerID          string      `json:"customerId,omitempty"`
	Location            *Location   `json:"location"`
	Items               []LineItem  `json:"items"`
	TimeWindow          *TimeWindow `json:"timeWindow,omitempty"`
	ServiceType         string      `json:"serviceType,omitempty"`
	Notes               string      `json:"notes,omitempty"`
	SpecialRequirements string      `json:"specialRequirements,omitempty"`
}

// VehicleIn is the API payload for registering vehicles.
type VehicleIn struct {
	Name           string          `json:"name,omitempty"`
	Capacity       VehicleCapacity `json:"capacity"`
	Specifications VehicleSpecs    `json:"specifications"`
}

// OptimizeRequest drives one optimization run. Empty OrderIDs/VehicleIDs
// mean "all pending orders" / "all vehicles" for the tenant.
type OptimizeRequest struct {
	TenantID   string             `json:"tenantId"`
	RouteDate  string             `json:"routeDate"`
	OrderIDs   []string           `json:"orderIds,omitempty"`
	VehicleIDs []string           `json:"vehicleIds,omitempty"`
	Depot      *Location          `json:"depot"`
	Weights    map[string]float64 `json:"weights,omitempty"`
}

// SubscriptionRequest registers a webhook endpoint for tenant events.
type SubscriptionRequest struct {
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret"`
}

// Subscription is a stored webhook registration.
type Subscription struct {
	ID       string   `json:"id"`
	TenantID string   `json:"tenantId"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	Secret   string   `json:"secret,omitempty"`
}
