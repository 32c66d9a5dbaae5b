package store

import (
	"context"
	"errors"
	"time"

	"routemate/internal/model"
	"routemate/internal/opt"
)

// OptimizerConfig is the per-tenant optimizer configuration: scoring
// weights and an optional default depot.
type OptimizerConfig struct {
	Weights map[string]float64 `json:"weights,omitempty"`
	Depot   *model.Location    `json:"depot,omitempty"`
}

// WebhookDelivery is one pending or attempted webhook delivery.
type WebhookDelivery struct {
	ID             string
	TenantID       string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Status         string
	Attempts       int
}

// Store is the persistence interface used by the API server.
type Store interface {
	// Orders
	CreateOrders(ctx context.Context, tenantID string, orders []model.OrderIn) (created int, err error)
	ListOrders(ctx context.Context, tenantID, status, cursor string, limit int) (items []model.Order, nextCursor string, err error)
	// GetOrdersForPlan loads pending orders for an optimize run. Empty ids
	// means all pending orders; explicit ids must each resolve to a pending
	// order (ErrNotFound for unknown ids, ErrOrderNotPending for already
	// assigned ones) so a re-run cannot double-book routed orders.
	GetOrdersForPlan(ctx context.Context, tenantID string, ids []string) ([]model.Order, error)
	MarkOrdersAssigned(ctx context.Context, tenantID string, ids []string) error

	// Vehicles
	CreateVehicles(ctx context.Context, tenantID string, vehicles []model.VehicleIn) ([]model.Vehicle, error)
	ListVehicles(ctx context.Context, tenantID string) ([]model.Vehicle, error)
	GetVehiclesForPlan(ctx context.Context, tenantID string, ids []string) ([]model.Vehicle, error)

	// Routes
	SaveRoutes(ctx context.Context, tenantID string, routes []model.Route) error
	GetRoute(ctx context.Context, tenantID, routeID string) (model.Route, error)
	ListRoutes(ctx context.Context, tenantID, routeDate, cursor string, limit int) ([]model.Route, string, error)

	// Subscriptions
	CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error)
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error)
	RetryWebhookDelivery(ctx context.Context, tenantID, id string) error

	// Optimizer config per tenant
	GetOptimizerConfig(ctx context.Context, tenantID string) (OptimizerConfig, bool, error)
	SaveOptimizerConfig(ctx context.Context, tenantID string, cfg OptimizerConfig) error

	// Plan statistics per tenant and route date
	SavePlanStats(ctx context.Context, tenantID, routeDate string, st opt.RunStats) error
	GetPlanStats(ctx context.Context, tenantID, routeDate string) (opt.RunStats, bool, error)
}

var (
	ErrNotFound = errors.New("not found")

	// ErrOrderNotPending is returned when a plan names an order that is
	// already assigned to a saved route.
	ErrOrderNotPending = errors.New("order not pending")
)
