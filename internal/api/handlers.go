package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"routemate/internal/metrics"
	"routemate/internal/model"
	"routemate/internal/opt"
	"routemate/internal/store"
)

// OrdersHandler handles POST/GET /v1/orders
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			TenantID string          `json:"tenantId"`
			Orders   []model.OrderIn `json:"orders"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.TenantID == "" {
			_, req.TenantID = s.withTenant(r)
		}
		if err := validateOrders(req.Orders); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid orders", err.Error(), r.URL.Path)
			return
		}
		created, err := s.Store.CreateOrders(r.Context(), req.TenantID, req.Orders)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create orders failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"created": created})
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		status := r.URL.Query().Get("status")
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListOrders(r.Context(), tenant, status, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List orders failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// VehiclesHandler handles POST/GET /v1/vehicles
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req struct {
			TenantID string            `json:"tenantId"`
			Vehicles []model.VehicleIn `json:"vehicles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.TenantID == "" {
			_, req.TenantID = s.withTenant(r)
		}
		if err := validateVehicles(req.Vehicles); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid vehicles", err.Error(), r.URL.Path)
			return
		}
		out, err := s.Store.CreateVehicles(r.Context(), req.TenantID, req.Vehicles)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create vehicles failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"items": out})
	case http.MethodGet:
		_, tenant := s.withTenant(r)
		items, err := s.Store.ListVehicles(r.Context(), tenant)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List vehicles failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OptimizeHandler handles POST /v1/optimize
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanPlan() {
		writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	if req.TenantID == "" {
		req.TenantID = p.Tenant
	}
	if req.RouteDate == "" {
		req.RouteDate = time.Now().UTC().Format("2006-01-02")
	}
	// Tenant config fills in depot and weights the request leaves out.
	cfg, ok, _ := s.Store.GetOptimizerConfig(r.Context(), req.TenantID)
	if ok {
		if req.Depot == nil {
			req.Depot = cfg.Depot
		}
		if req.Weights == nil {
			req.Weights = cfg.Weights
		}
	}
	if err := validateOptimizeRequest(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid optimize request", err.Error(), r.URL.Path)
		return
	}

	orders, err := s.Store.GetOrdersForPlan(r.Context(), req.TenantID, req.OrderIDs)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, store.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, store.ErrOrderNotPending):
			status = http.StatusConflict
		}
		writeProblem(w, status, "Load orders failed", err.Error(), r.URL.Path)
		return
	}
	vehicles, err := s.Store.GetVehiclesForPlan(r.Context(), req.TenantID, req.VehicleIDs)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeProblem(w, status, "Load vehicles failed", err.Error(), r.URL.Path)
		return
	}

	start := time.Now()
	plan := opt.Optimize(orders, vehicles, *req.Depot, req.Weights, req.TenantID, req.RouteDate)
	metrics.OptimizeDuration.Observe(time.Since(start).Seconds())

	if err := s.Store.SaveRoutes(r.Context(), req.TenantID, plan.Routes); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Save routes failed", err.Error(), r.URL.Path)
		return
	}
	var assigned []string
	for _, rt := range plan.Routes {
		for _, st := range rt.Stops {
			assigned = append(assigned, st.OrderID)
		}
	}
	if err := s.Store.MarkOrdersAssigned(r.Context(), req.TenantID, assigned); err != nil {
		writeProblem(w, http.StatusInternalServerError, "Mark orders failed", err.Error(), r.URL.Path)
		return
	}

	st := opt.StatsFor(plan)
	_ = s.Store.SavePlanStats(r.Context(), req.TenantID, req.RouteDate, st)
	opt.RecordRun(req.TenantID, req.RouteDate, st)

	metrics.OptimizeRuns.WithLabelValues(req.TenantID).Inc()
	metrics.RoutesPlanned.WithLabelValues(req.TenantID).Add(float64(len(plan.Routes)))
	metrics.OrdersUnassigned.WithLabelValues(req.TenantID).Add(float64(len(plan.UnassignedOrderIDs)))

	for _, rt := range plan.Routes {
		data := map[string]any{
			"routeId":   rt.ID,
			"routeDate": rt.RouteDate,
			"vehicleId": rt.VehicleID,
			"stopCount": len(rt.Stops),
			"score":     rt.Score,
		}
		s.Pub.Emit(r.Context(), req.TenantID, "route.optimized", data)
		s.Broker.Publish(rt.ID, SSEEvent{Type: "route.optimized", Data: data})
		if s.Queue != nil {
			_ = s.Queue.PublishEvent("route.optimized", data)
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"routes":             plan.Routes,
		"unassignedOrderIds": plan.UnassignedOrderIDs,
		"stats":              st,
	})
}

// OptimizerConfigHandler returns default optimizer configuration with the
// tenant's overrides applied.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimizer/config" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	defaults := map[string]any{
		"weights":         opt.DefaultWeights(),
		"stopDurationMin": opt.StopDurationMin,
	}
	cfg, ok, _ := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
	if ok {
		if cfg.Weights != nil {
			defaults["weights"] = cfg.Weights
		}
		if cfg.Depot != nil {
			defaults["depot"] = cfg.Depot
		}
	}
	writeJSON(w, 200, map[string]any{"defaults": defaults})
}

// AdminOptimizerConfigHandler gets/sets per-tenant optimizer config.
func (s *Server) AdminOptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/optimizer/config" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodGet:
		cfg, _, _ := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
		writeJSON(w, 200, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct {
			Config store.OptimizerConfig `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		for k, v := range body.Config.Weights {
			if _, ok := opt.DefaultWeights()[k]; !ok {
				writeProblem(w, 400, "Invalid config", "unknown weight key: "+k, r.URL.Path)
				return
			}
			if v < 0 {
				writeProblem(w, 400, "Invalid config", "weight "+k+" must be >= 0", r.URL.Path)
				return
			}
		}
		if err := validLocation(body.Config.Depot); err != nil {
			writeProblem(w, 400, "Invalid config", err.Error(), r.URL.Path)
			return
		}
		if err := s.Store.SaveOptimizerConfig(r.Context(), p.Tenant, body.Config); err != nil {
			writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]bool{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// RoutesIndexHandler handles GET /v1/routes
func (s *Server) RoutesIndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/routes" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	routeDate := r.URL.Query().Get("routeDate")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListRoutes(r.Context(), tenant, routeDate, cursor, limit)
	if err != nil {
		writeProblem(w, 500, "List routes failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// RouteByIDHandler handles GET /v1/routes/{id} plus the event stream
// endpoints /v1/routes/{id}/events/stream (SSE) and /v1/routes/{id}/events/ws.
func (s *Server) RouteByIDHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	rest := strings.TrimPrefix(path, "/v1/routes/")
	if rest == path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", path)
		return
	}
	parts := strings.Split(rest, "/")
	id := parts[0]
	if len(parts) > 2 && parts[1] == "events" && parts[2] == "stream" {
		s.streamRouteEvents(w, r, id)
		return
	}
	if len(parts) > 2 && parts[1] == "events" && parts[2] == "ws" {
		s.RouteEventsWSHandler(w, r, id)
		return
	}

	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	_, tenant := s.withTenant(r)
	route, err := s.Store.GetRoute(r.Context(), tenant, id)
	if err != nil {
		writeProblem(w, http.StatusNotFound, "Route not found", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, route)
}

func (s *Server) streamRouteEvents(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, 500, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	ch := s.Broker.Subscribe(id)
	defer s.Broker.Unsubscribe(id, ch)
	// initial heartbeat
	fmt.Fprintf(w, "event: heartbeat\n")
	fmt.Fprintf(w, "data: {\"routeId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
	flusher.Flush()
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			return
		case evt := <-ch:
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\n", evt.Type)
			fmt.Fprintf(w, "data: %s\n\n", string(b))
			flusher.Flush()
		case <-time.After(15 * time.Second):
			fmt.Fprintf(w, "event: heartbeat\n")
			fmt.Fprintf(w, "data: {\"routeId\":\"%s\",\"ts\":\"%s\"}\n\n", id, time.Now().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var req model.SubscriptionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.TenantID == "" {
			req.TenantID = p.Tenant
		}
		if req.URL == "" || len(req.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events required", r.URL.Path)
			return
		}
		sub, err := s.Store.CreateSubscription(r.Context(), req)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, sub)
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListSubscriptions(r.Context(), p.Tenant, cursor, limit)
		if err != nil {
			writeProblem(w, 500, "List subscriptions failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id}
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
		writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(204)
}

// WebhookDeliveriesHandler lists webhook deliveries for admins.
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/webhook-deliveries" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(405)
		return
	}
	status := r.URL.Query().Get("status")
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListWebhookDeliveries(r.Context(), p.Tenant, status, cursor, limit)
	if err != nil {
		writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "nextCursor": next})
}

// WebhookDeliveryRetryHandler requeues a failed or scheduled delivery.
func (s *Server) WebhookDeliveryRetryHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/") || !strings.HasSuffix(r.URL.Path, "/retry") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(405)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1/admin/webhook-deliveries/"), "/retry")
	if err := s.Store.RetryWebhookDelivery(r.Context(), p.Tenant, id); err != nil {
		writeProblem(w, 500, "Retry delivery failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 202, map[string]int{"accepted": 1})
}

// PlanStatsHandler returns aggregate stats for one optimization run.
func (s *Server) PlanStatsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/plan-stats" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	routeDate := r.URL.Query().Get("routeDate")
	if routeDate == "" {
		writeProblem(w, 400, "Missing routeDate", "", r.URL.Path)
		return
	}
	st, ok, err := s.Store.GetPlanStats(r.Context(), p.Tenant, routeDate)
	if err != nil {
		writeProblem(w, 500, "Stats failed", err.Error(), r.URL.Path)
		return
	}
	if !ok {
		// fall back to the in-process run record
		st, ok = opt.GetRun(p.Tenant, routeDate)
	}
	if !ok {
		writeProblem(w, 404, "Not Found", "no stats for routeDate", r.URL.Path)
		return
	}
	writeJSON(w, 200, st)
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	// Check DB connectivity when using Postgres store
	type pinger interface{ Ping(ctx context.Context) error }
	if pg, ok := s.Store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := pg.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
