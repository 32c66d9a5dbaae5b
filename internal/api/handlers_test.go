package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"routemate/internal/config"
	"routemate/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServerWithConfig(config.Config{Port: "0", AuthMode: "dev", WebhookMaxAttempts: 3})
	if err != nil {
		t.Fatalf("NewServerWithConfig: %v", err)
	}
	return s
}

func postJSON(t *testing.T, fn http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	fn(rr, req)
	return rr
}

func seedFleet(t *testing.T, s *Server) {
	t.Helper()
	rr := postJSON(t, s.OrdersHandler, "/v1/orders", map[string]any{
		"orders": []map[string]any{
			{"location": map[string]float64{"latitude": 40.71, "longitude": -74.00}, "items": []map[string]any{{"name": "crate", "weightLbs": 100}}},
			{"location": map[string]float64{"latitude": 40.73, "longitude": -73.99}, "items": []map[string]any{{"name": "pallet", "weightLbs": 200}}},
		},
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("orders create: got %d body %s", rr.Code, rr.Body.String())
	}
	rr = postJSON(t, s.VehiclesHandler, "/v1/vehicles", map[string]any{
		"vehicles": []map[string]any{
			{"name": "van-1", "capacity": map[string]float64{"weightLbs": 500}, "specifications": map[string]float64{"costPerMile": 0.65, "mpg": 10}},
		},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("vehicles create: got %d body %s", rr.Code, rr.Body.String())
	}
}

func TestHealthReady(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("health: got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.ReadyHandler(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != 200 {
		t.Fatalf("ready: got %d", rr.Code)
	}
}

func TestOrdersCreateList(t *testing.T) {
	s := newTestServer(t)
	seedFleet(t, s)
	rr := httptest.NewRecorder()
	s.OrdersHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/orders?limit=5", nil))
	if rr.Code != 200 {
		t.Fatalf("orders list: got %d", rr.Code)
	}
	var resp struct {
		Items []model.Order `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(resp.Items))
	}
}

func TestOrdersRejectBadCoordinates(t *testing.T) {
	s := newTestServer(t)
	rr := postJSON(t, s.OrdersHandler, "/v1/orders", map[string]any{
		"orders": []map[string]any{
			{"location": map[string]float64{"latitude": 95, "longitude": 0}},
		},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for latitude out of range, got %d", rr.Code)
	}
}

func TestOptimizeEndToEnd(t *testing.T) {
	s := newTestServer(t)
	seedFleet(t, s)

	rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", map[string]any{
		"routeDate": "2026-08-28",
		"depot":     map[string]float64{"latitude": 40.70, "longitude": -74.01},
	})
	if rr.Code != 200 {
		t.Fatalf("optimize: %d body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Routes             []model.Route `json:"routes"`
		UnassignedOrderIDs []string      `json:"unassignedOrderIds"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Routes) != 1 {
		t.Fatalf("expected one route, got %d", len(resp.Routes))
	}
	rt := resp.Routes[0]
	if len(rt.Stops) != 2 || rt.Status != "optimized" {
		t.Fatalf("unexpected route: %+v", rt)
	}
	if rt.Score == nil || rt.Score.Grade == "" {
		t.Fatalf("route should carry a score")
	}
	if len(resp.UnassignedOrderIDs) != 0 {
		t.Fatalf("all orders fit capacity, unassigned: %v", resp.UnassignedOrderIDs)
	}

	// assigned orders leave the pending pool
	rr2 := httptest.NewRecorder()
	s.OrdersHandler(rr2, httptest.NewRequest(http.MethodGet, "/v1/orders?status=pending", nil))
	var pending struct {
		Items []model.Order `json:"items"`
	}
	_ = json.Unmarshal(rr2.Body.Bytes(), &pending)
	if len(pending.Items) != 0 {
		t.Fatalf("expected no pending orders after optimize, got %d", len(pending.Items))
	}

	// routes are listable and fetchable
	rr2 = httptest.NewRecorder()
	s.RoutesIndexHandler(rr2, httptest.NewRequest(http.MethodGet, "/v1/routes?routeDate=2026-08-28", nil))
	if rr2.Code != 200 {
		t.Fatalf("routes index: %d", rr2.Code)
	}
	rr2 = httptest.NewRecorder()
	s.RouteByIDHandler(rr2, httptest.NewRequest(http.MethodGet, "/v1/routes/"+rt.ID, nil))
	if rr2.Code != 200 {
		t.Fatalf("route by id: %d", rr2.Code)
	}
}

func TestOptimizeRejectsAlreadyAssignedOrders(t *testing.T) {
	s := newTestServer(t)
	seedFleet(t, s)

	rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", map[string]any{
		"routeDate": "2026-08-28",
		"depot":     map[string]float64{"latitude": 40.70, "longitude": -74.01},
	})
	if rr.Code != 200 {
		t.Fatalf("optimize: %d body %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Routes []model.Route `json:"routes"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	assigned := resp.Routes[0].Stops[0].OrderID

	// re-running with the routed order named explicitly must not double-book it
	rr = postJSON(t, s.OptimizeHandler, "/v1/optimize", map[string]any{
		"routeDate": "2026-08-29",
		"depot":     map[string]float64{"latitude": 40.70, "longitude": -74.01},
		"orderIds":  []string{assigned},
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for assigned order, got %d body %s", rr.Code, rr.Body.String())
	}
}

func TestOptimizeRequiresDepot(t *testing.T) {
	s := newTestServer(t)
	seedFleet(t, s)
	rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", map[string]any{"routeDate": "2026-08-28"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without depot, got %d", rr.Code)
	}
}

func TestOptimizeForbiddenForViewer(t *testing.T) {
	s := newTestServer(t)
	b, _ := json.Marshal(map[string]any{"depot": map[string]float64{"latitude": 0, "longitude": 0}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/optimize", bytes.NewReader(b))
	req.Header.Set("X-Role", "viewer")
	s.OptimizeHandler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for viewer, got %d", rr.Code)
	}
}

func TestOptimizeUsesTenantConfigDepot(t *testing.T) {
	s := newTestServer(t)
	seedFleet(t, s)
	rr := httptest.NewRecorder()
	b, _ := json.Marshal(map[string]any{"config": map[string]any{
		"depot":   map[string]float64{"latitude": 40.70, "longitude": -74.01},
		"weights": map[string]float64{"distance": 1.0},
	}})
	req := httptest.NewRequest(http.MethodPut, "/v1/admin/optimizer/config", bytes.NewReader(b))
	s.AdminOptimizerConfigHandler(rr, req)
	if rr.Code != 200 {
		t.Fatalf("save config: %d body %s", rr.Code, rr.Body.String())
	}

	// no depot in the request; the stored tenant config supplies it
	rr = postJSON(t, s.OptimizeHandler, "/v1/optimize", map[string]any{"routeDate": "2026-08-28"})
	if rr.Code != 200 {
		t.Fatalf("optimize with config depot: %d body %s", rr.Code, rr.Body.String())
	}
}

func TestOptimizerConfigDefaults(t *testing.T) {
	s := newTestServer(t)
	rr := httptest.NewRecorder()
	s.OptimizerConfigHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/optimizer/config", nil))
	if rr.Code != 200 {
		t.Fatalf("config: %d", rr.Code)
	}
	var resp struct {
		Defaults struct {
			Weights map[string]float64 `json:"weights"`
		} `json:"defaults"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Defaults.Weights["distance"] != 0.25 {
		t.Fatalf("default distance weight: %v", resp.Defaults.Weights)
	}
}

func TestAdminConfigRejectsUnknownWeight(t *testing.T) {
	s := newTestServer(t)
	b, _ := json.Marshal(map[string]any{"config": map[string]any{"weights": map[string]float64{"speed": 1}}})
	rr := httptest.NewRecorder()
	s.AdminOptimizerConfigHandler(rr, httptest.NewRequest(http.MethodPut, "/v1/admin/optimizer/config", bytes.NewReader(b)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown weight key, got %d", rr.Code)
	}
}

func TestPlanStatsAfterOptimize(t *testing.T) {
	s := newTestServer(t)
	seedFleet(t, s)
	rr := postJSON(t, s.OptimizeHandler, "/v1/optimize", map[string]any{
		"routeDate": "2026-08-28",
		"depot":     map[string]float64{"latitude": 40.70, "longitude": -74.01},
	})
	if rr.Code != 200 {
		t.Fatalf("optimize: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.PlanStatsHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/plan-stats?routeDate=2026-08-28", nil))
	if rr.Code != 200 {
		t.Fatalf("plan stats: %d body %s", rr.Code, rr.Body.String())
	}
	var st struct {
		Routes         int `json:"routes"`
		AssignedOrders int `json:"assignedOrders"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &st)
	if st.Routes != 1 || st.AssignedOrders != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestSubscriptionsEnqueueOnOptimize(t *testing.T) {
	s := newTestServer(t)
	seedFleet(t, s)
	rr := postJSON(t, s.SubscriptionsHandler, "/v1/subscriptions", map[string]any{
		"url":    "https://example.com/hook",
		"events": []string{"route.optimized"},
		"secret": "sh",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create subscription: %d", rr.Code)
	}
	rr = postJSON(t, s.OptimizeHandler, "/v1/optimize", map[string]any{
		"routeDate": "2026-08-28",
		"depot":     map[string]float64{"latitude": 40.70, "longitude": -74.01},
	})
	if rr.Code != 200 {
		t.Fatalf("optimize: %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	s.WebhookDeliveriesHandler(rr, httptest.NewRequest(http.MethodGet, "/v1/admin/webhook-deliveries", nil))
	if rr.Code != 200 {
		t.Fatalf("deliveries: %d", rr.Code)
	}
	var resp struct {
		Items []map[string]any `json:"items"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp.Items) == 0 {
		t.Fatalf("expected enqueued webhook delivery after optimize")
	}
}

func TestSubscriptionsRequireAdmin(t *testing.T) {
	s := newTestServer(t)
	b, _ := json.Marshal(map[string]any{"url": "https://example.com/hook", "events": []string{"route.optimized"}})
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/subscriptions", bytes.NewReader(b))
	req.Header.Set("X-Role", "dispatcher")
	s.SubscriptionsHandler(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for dispatcher, got %d", rr.Code)
	}
}
