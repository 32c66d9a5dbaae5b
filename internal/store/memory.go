package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"routemate/internal/model"
	"routemate/internal/opt"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu          sync.Mutex
	orders      map[string]model.Order   // id -> order
	ordersByTen map[string][]string      // tenant -> order ids, insertion order
	vehicles    map[string]model.Vehicle // id -> vehicle
	vehsByTen   map[string][]string      // tenant -> vehicle ids
	routes      map[string]model.Route   // id -> route
	routesByTen map[string][]string      // tenant -> route ids
	subs        map[string][]model.Subscription
	deliveries  map[string]*memDelivery
	delivByTen  map[string][]string
	optCfg      map[string]OptimizerConfig
	planStats   map[string]map[string]opt.RunStats // tenant -> routeDate -> stats
}

func NewMemory() *Memory {
	return &Memory{
		orders:      map[string]model.Order{},
		ordersByTen: map[string][]string{},
		vehicles:    map[string]model.Vehicle{},
		vehsByTen:   map[string][]string{},
		routes:      map[string]model.Route{},
		routesByTen: map[string][]string{},
		subs:        map[string][]model.Subscription{},
		deliveries:  map[string]*memDelivery{},
		delivByTen:  map[string][]string{},
		optCfg:      map[string]OptimizerConfig{},
		planStats:   map[string]map[string]opt.RunStats{},
	}
}

// memDelivery augments WebhookDelivery with scheduling/metrics state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) CreateOrders(ctx context.Context, tenantID string, orders []model.OrderIn) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := 0
	for _, in := range orders {
		if in.Location == nil {
			continue
		}
		id := uuid.New().String()
		m.orders[id] = model.Order{
			ID:                  id,
			TenantID:            tenantID,
			CustomerID:          in.CustomerID,
			Location:            *in.Location,
			Items:               in.Items,
			TimeWindow:          in.TimeWindow,
			ServiceType:         in.ServiceType,
			Notes:               in.Notes,
			SpecialRequirements: in.SpecialRequirements,
			Status:              "pending",
		}
		m.ordersByTen[tenantID] = append(m.ordersByTen[tenantID], id)
		created++
	}
	return created, nil
}

func (m *Memory) ListOrders(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Order, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.ordersByTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.Order{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		o := m.orders[ids[i]]
		if status == "" || o.Status == status {
			out = append(out, o)
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) GetOrdersForPlan(ctx context.Context, tenantID string, ids []string) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Order{}
	if len(ids) == 0 {
		for _, id := range m.ordersByTen[tenantID] {
			if o := m.orders[id]; o.Status == "pending" {
				out = append(out, o)
			}
		}
		return out, nil
	}
	for _, id := range ids {
		o, ok := m.orders[id]
		if !ok || o.TenantID != tenantID {
			return nil, ErrNotFound
		}
		if o.Status != "pending" {
			return nil, ErrOrderNotPending
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *Memory) MarkOrdersAssigned(ctx context.Context, tenantID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if o, ok := m.orders[id]; ok && o.TenantID == tenantID {
			o.Status = "assigned"
			m.orders[id] = o
		}
	}
	return nil
}

func (m *Memory) CreateVehicles(ctx context.Context, tenantID string, vehicles []model.VehicleIn) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Vehicle, 0, len(vehicles))
	for _, in := range vehicles {
		id := uuid.New().String()
		v := model.Vehicle{ID: id, TenantID: tenantID, Name: in.Name, Capacity: in.Capacity, Specifications: in.Specifications}
		m.vehicles[id] = v
		m.vehsByTen[tenantID] = append(m.vehsByTen[tenantID], id)
		out = append(out, v)
	}
	return out, nil
}

func (m *Memory) ListVehicles(ctx context.Context, tenantID string) ([]model.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Vehicle{}
	for _, id := range m.vehsByTen[tenantID] {
		out = append(out, m.vehicles[id])
	}
	return out, nil
}

func (m *Memory) GetVehiclesForPlan(ctx context.Context, tenantID string, ids []string) ([]model.Vehicle, error) {
	if len(ids) == 0 {
		return m.ListVehicles(ctx, tenantID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Vehicle{}
	for _, id := range ids {
		v, ok := m.vehicles[id]
		if !ok || v.TenantID != tenantID {
			return nil, ErrNotFound
		}
		out = append(out, v)
	}
	return out, nil
}

func (m *Memory) SaveRoutes(ctx context.Context, tenantID string, routes []model.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range routes {
		m.routes[r.ID] = r
		m.routesByTen[tenantID] = append(m.routesByTen[tenantID], r.ID)
	}
	return nil
}

func (m *Memory) GetRoute(ctx context.Context, tenantID, routeID string) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[routeID]
	if !ok || r.TenantID != tenantID {
		return model.Route{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) ListRoutes(ctx context.Context, tenantID, routeDate, cursor string, limit int) ([]model.Route, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.routesByTen[tenantID]
	start := 0
	if cursor != "" {
		for i, id := range ids {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	out := []model.Route{}
	var next string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		r := m.routes[ids[i]]
		if routeDate == "" || r.RouteDate == routeDate {
			out = append(out, r)
		}
		next = ids[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.Subscription{ID: uuid.New().String(), TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}
	m.subs[req.TenantID] = append(m.subs[req.TenantID], s)
	return s, nil
}

func (m *Memory) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Subscription
	for _, s := range m.subs[tenantID] {
		for _, e := range s.Events {
			if e == eventType {
				out = append(out, s)
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range list {
			if list[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(list) {
		end = len(list)
	}
	items := append([]model.Subscription(nil), list[start:end]...)
	next := ""
	if end < len(list) {
		next = list[end-1].ID
	}
	return items, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	arr := m.subs[tenantID]
	out := make([]model.Subscription, 0, len(arr))
	for _, s := range arr {
		if s.ID != id {
			out = append(out, s)
		}
	}
	m.subs[tenantID] = out
	return nil
}

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	d := &memDelivery{
		WebhookDelivery: WebhookDelivery{ID: id, TenantID: tenantID, SubscriptionID: subscriptionID, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending"},
		NextAttemptAt:   time.Now(),
	}
	m.deliveries[id] = d
	m.delivByTen[tenantID] = append(m.delivByTen[tenantID], id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, ids := range m.delivByTen {
		for _, id := range ids {
			d := m.deliveries[id]
			if d == nil {
				continue
			}
			if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
				out = append(out, d.WebhookDelivery)
				if limit > 0 && len(out) >= limit {
					return out, nil
				}
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return nil
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = time.Now().Add(time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.deliveries[id]; d != nil {
		d.Status = "failed"
		d.LastError = lastError
		d.ResponseCode = responseCode
		d.LatencyMs = latencyMs
	}
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []map[string]any{}
	for _, id := range m.delivByTen[tenantID] {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if status == "" || d.Status == status {
			item := map[string]any{"id": d.ID, "eventType": d.EventType, "status": d.Status, "attempts": d.Attempts, "url": d.URL}
			if d.LastError != "" {
				item["lastError"] = d.LastError
			}
			out = append(out, item)
		}
	}
	return out, "", nil
}

func (m *Memory) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d := m.deliveries[id]; d != nil && d.TenantID == tenantID {
		d.Status = "pending"
		d.NextAttemptAt = time.Now()
	}
	return nil
}

func (m *Memory) GetOptimizerConfig(ctx context.Context, tenantID string) (OptimizerConfig, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.optCfg[tenantID]
	return cfg, ok, nil
}

func (m *Memory) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg OptimizerConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optCfg[tenantID] = cfg
	return nil
}

func (m *Memory) SavePlanStats(ctx context.Context, tenantID, routeDate string, st opt.RunStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.planStats[tenantID] == nil {
		m.planStats[tenantID] = map[string]opt.RunStats{}
	}
	m.planStats[tenantID][routeDate] = st
	return nil
}

func (m *Memory) GetPlanStats(ctx context.Context, tenantID, routeDate string) (opt.RunStats, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.planStats[tenantID][routeDate]
	return st, ok, nil
}
