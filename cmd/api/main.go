package main

import (
	"bufio"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"routemate/internal/api"
	"routemate/internal/metrics"
)

func main() {
	// optional .env for local development
	_ = godotenv.Load()

	srv, err := api.NewServer()
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}
	metrics.RegisterDefault()

	mux := http.NewServeMux()

	// Orders and vehicles
	mux.HandleFunc("/v1/orders", srv.OrdersHandler)
	mux.HandleFunc("/v1/vehicles", srv.VehiclesHandler)

	// Optimization
	mux.HandleFunc("/v1/optimize", srv.OptimizeHandler)
	mux.HandleFunc("/v1/optimizer/config", srv.OptimizerConfigHandler)
	mux.HandleFunc("/v1/admin/optimizer/config", srv.AdminOptimizerConfigHandler)

	// Routes
	mux.HandleFunc("/v1/routes", srv.RoutesIndexHandler)
	mux.HandleFunc("/v1/routes/", srv.RouteByIDHandler) // includes /events/stream and /events/ws

	// Subscriptions
	mux.HandleFunc("/v1/subscriptions", srv.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srv.SubscriptionByIDHandler)

	// Admin
	mux.HandleFunc("/v1/admin/webhook-deliveries", srv.WebhookDeliveriesHandler)
	mux.HandleFunc("/v1/admin/webhook-deliveries/", srv.WebhookDeliveryRetryHandler)
	mux.HandleFunc("/v1/admin/plan-stats", srv.PlanStatsHandler)

	// Health and introspection
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)
	mux.HandleFunc("/debug/info", srv.DebugJSON)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	handler := logMiddleware(metricsMiddleware(mux))
	if srv.Cfg.RateRPS > 0 {
		handler = rateLimitMiddleware(rate.NewLimiter(rate.Limit(srv.Cfg.RateRPS), srv.Cfg.RateBurst), handler)
	}

	httpSrv := &http.Server{
		Addr:              ":" + srv.Cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Printf("API listening on %s", httpSrv.Addr)
	worker := srv.NewWebhookWorker()
	worker.Start()
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		dur := time.Since(start)
		log.Printf("%s %s %s %v", r.RemoteAddr, r.Method, r.URL.Path, dur)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack passes through for WebSocket upgrades.
func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	return h.Hijack()
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		status := strconv.Itoa(rec.status)
		metrics.HTTPRequests.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(start).Seconds())
	})
}

func rateLimitMiddleware(lim *rate.Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !lim.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
