package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"routemate/internal/model"
	"routemate/internal/opt"
)

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil { return nil, err }
	if err := db.Ping(); err != nil { return nil, err }
	return &Postgres{db: db}, nil
}

// Ping verifies database connectivity for readiness checks.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// MigrateDir applies every .sql file in dir in lexical order. Statements are
// idempotent (CREATE IF NOT EXISTS) so re-running is safe.
func (p *Postgres) MigrateDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil { return err }
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil { return err }
		if _, err := p.db.Exec(string(b)); err != nil { return err }
	}
	return nil
}

func (p *Postgres) CreateOrders(ctx context.Context, tenantID string, orders []model.OrderIn) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil { return 0, err }
	defer func() { _ = tx.Rollback() }()
	created := 0
	for _, in := range orders {
		if in.Location == nil { continue }
		items, _ := json.Marshal(in.Items)
		var tw any
		if in.TimeWindow != nil {
			b, _ := json.Marshal(in.TimeWindow)
			tw = b
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO orders (id, tenant_id, customer_id, lat, lng, items, time_window, service_type, notes, special_requirements, status)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,'pending')`,
			uuid.New(), tenantID, nullIfEmpty(in.CustomerID), in.Location.Latitude, in.Location.Longitude, items, tw, nullIfEmpty(in.ServiceType), nullIfEmpty(in.Notes), nullIfEmpty(in.SpecialRequirements))
		if err != nil { return 0, err }
		created++
	}
	if err := tx.Commit(); err != nil { return 0, err }
	return created, nil
}

func scanOrder(rows *sql.Rows) (model.Order, error) {
	var o model.Order
	var cust, svc, notes, reqs sql.NullString
	var items, tw []byte
	if err := rows.Scan(&o.ID, &o.TenantID, &cust, &o.Location.Latitude, &o.Location.Longitude, &items, &tw, &svc, &notes, &reqs, &o.Status); err != nil {
		return o, err
	}
	o.CustomerID = cust.String
	o.ServiceType = svc.String
	o.Notes = notes.String
	o.SpecialRequirements = reqs.String
	_ = json.Unmarshal(items, &o.Items)
	if len(tw) > 0 {
		var w model.TimeWindow
		if json.Unmarshal(tw, &w) == nil { o.TimeWindow = &w }
	}
	return o, nil
}

const orderCols = `id::text, tenant_id::text, customer_id, lat, lng, items, time_window, service_type, notes, special_requirements, status`

func (p *Postgres) ListOrders(ctx context.Context, tenantID, status, cursor string, limit int) ([]model.Order, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	if status != "" {
		if cursor != "" {
			rows, err = p.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders WHERE tenant_id=$1 AND status=$2 AND id::text > $3 ORDER BY id LIMIT $4`, tenantID, status, cursor, limit)
		} else {
			rows, err = p.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders WHERE tenant_id=$1 AND status=$2 ORDER BY id LIMIT $3`, tenantID, status, limit)
		}
	} else {
		if cursor != "" {
			rows, err = p.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
		} else {
			rows, err = p.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
		}
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.Order{}
	var last string
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil { return nil, "", err }
		out = append(out, o)
		last = o.ID
	}
	next := ""
	if len(out) == limit { next = last }
	return out, next, nil
}

func (p *Postgres) GetOrdersForPlan(ctx context.Context, tenantID string, ids []string) ([]model.Order, error) {
	var rows *sql.Rows
	var err error
	if len(ids) == 0 {
		rows, err = p.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders WHERE tenant_id=$1 AND status='pending' ORDER BY created_at, id`, tenantID)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT `+orderCols+` FROM orders WHERE tenant_id=$1 AND id::text = ANY($2) ORDER BY array_position($2, id::text)`, tenantID, ids)
	}
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil { return nil, err }
		out = append(out, o)
	}
	if len(ids) > 0 {
		if len(out) != len(ids) { return nil, ErrNotFound }
		for _, o := range out {
			if o.Status != "pending" { return nil, ErrOrderNotPending }
		}
	}
	return out, nil
}

func (p *Postgres) MarkOrdersAssigned(ctx context.Context, tenantID string, ids []string) error {
	if len(ids) == 0 { return nil }
	_, err := p.db.ExecContext(ctx, `UPDATE orders SET status='assigned', updated_at=now() WHERE tenant_id=$1 AND id::text = ANY($2)`, tenantID, ids)
	return err
}

func (p *Postgres) CreateVehicles(ctx context.Context, tenantID string, vehicles []model.VehicleIn) ([]model.Vehicle, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil { return nil, err }
	defer func() { _ = tx.Rollback() }()
	out := make([]model.Vehicle, 0, len(vehicles))
	for _, in := range vehicles {
		id := uuid.New().String()
		_, err = tx.ExecContext(ctx, `INSERT INTO vehicles (id, tenant_id, name, capacity_lbs, cost_per_mile, mpg) VALUES ($1,$2,$3,$4,$5,$6)`,
			id, tenantID, nullIfEmpty(in.Name), in.Capacity.WeightLbs, in.Specifications.CostPerMile, in.Specifications.MPG)
		if err != nil { return nil, err }
		out = append(out, model.Vehicle{ID: id, TenantID: tenantID, Name: in.Name, Capacity: in.Capacity, Specifications: in.Specifications})
	}
	if err := tx.Commit(); err != nil { return nil, err }
	return out, nil
}

func (p *Postgres) scanVehicles(rows *sql.Rows) ([]model.Vehicle, error) {
	out := []model.Vehicle{}
	for rows.Next() {
		var v model.Vehicle
		var name sql.NullString
		if err := rows.Scan(&v.ID, &v.TenantID, &name, &v.Capacity.WeightLbs, &v.Specifications.CostPerMile, &v.Specifications.MPG); err != nil {
			return nil, err
		}
		v.Name = name.String
		out = append(out, v)
	}
	return out, nil
}

func (p *Postgres) ListVehicles(ctx context.Context, tenantID string) ([]model.Vehicle, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, name, capacity_lbs, cost_per_mile, mpg FROM vehicles WHERE tenant_id=$1 ORDER BY created_at, id`, tenantID)
	if err != nil { return nil, err }
	defer rows.Close()
	return p.scanVehicles(rows)
}

func (p *Postgres) GetVehiclesForPlan(ctx context.Context, tenantID string, ids []string) ([]model.Vehicle, error) {
	if len(ids) == 0 { return p.ListVehicles(ctx, tenantID) }
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, name, capacity_lbs, cost_per_mile, mpg FROM vehicles WHERE tenant_id=$1 AND id::text = ANY($2) ORDER BY array_position($2, id::text)`, tenantID, ids)
	if err != nil { return nil, err }
	defer rows.Close()
	out, err := p.scanVehicles(rows)
	if err != nil { return nil, err }
	if len(out) != len(ids) { return nil, ErrNotFound }
	return out, nil
}

func (p *Postgres) SaveRoutes(ctx context.Context, tenantID string, routes []model.Route) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil { return err }
	defer func() { _ = tx.Rollback() }()
	for _, r := range routes {
		stops, _ := json.Marshal(r.Stops)
		metrics, _ := json.Marshal(r.Metrics)
		var score any
		if r.Score != nil {
			b, _ := json.Marshal(r.Score)
			score = b
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO routes (id, tenant_id, name, route_date, status, vehicle_id, stops, metrics, score, optimized_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			r.ID, tenantID, r.Name, r.RouteDate, r.Status, r.VehicleID, stops, metrics, score, nullIfEmpty(r.OptimizedAt))
		if err != nil { return err }
	}
	return tx.Commit()
}

func scanRoute(sc interface{ Scan(...any) error }) (model.Route, error) {
	var r model.Route
	var stops, metrics, score []byte
	var optAt sql.NullString
	var createdAt time.Time
	if err := sc.Scan(&r.ID, &r.TenantID, &r.Name, &r.RouteDate, &r.Status, &r.VehicleID, &stops, &metrics, &score, &optAt, &createdAt); err != nil {
		return r, err
	}
	_ = json.Unmarshal(stops, &r.Stops)
	_ = json.Unmarshal(metrics, &r.Metrics)
	if len(score) > 0 {
		var s model.OptimizationScore
		if json.Unmarshal(score, &s) == nil { r.Score = &s }
	}
	r.OptimizedAt = optAt.String
	r.CreatedAt = createdAt.UTC().Format(time.RFC3339)
	return r, nil
}

const routeCols = `id::text, tenant_id::text, name, route_date, status, vehicle_id::text, stops, metrics, score, optimized_at, created_at`

func (p *Postgres) GetRoute(ctx context.Context, tenantID, routeID string) (model.Route, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+routeCols+` FROM routes WHERE tenant_id=$1 AND id=$2`, tenantID, routeID)
	r, err := scanRoute(row)
	if errors.Is(err, sql.ErrNoRows) { return model.Route{}, ErrNotFound }
	return r, err
}

func (p *Postgres) ListRoutes(ctx context.Context, tenantID, routeDate, cursor string, limit int) ([]model.Route, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	if routeDate != "" {
		if cursor != "" {
			rows, err = p.db.QueryContext(ctx, `SELECT `+routeCols+` FROM routes WHERE tenant_id=$1 AND route_date=$2 AND id::text > $3 ORDER BY id LIMIT $4`, tenantID, routeDate, cursor, limit)
		} else {
			rows, err = p.db.QueryContext(ctx, `SELECT `+routeCols+` FROM routes WHERE tenant_id=$1 AND route_date=$2 ORDER BY id LIMIT $3`, tenantID, routeDate, limit)
		}
	} else {
		if cursor != "" {
			rows, err = p.db.QueryContext(ctx, `SELECT `+routeCols+` FROM routes WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
		} else {
			rows, err = p.db.QueryContext(ctx, `SELECT `+routeCols+` FROM routes WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
		}
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.Route{}
	var last string
	for rows.Next() {
		r, err := scanRoute(rows)
		if err != nil { return nil, "", err }
		out = append(out, r)
		last = r.ID
	}
	next := ""
	if len(out) == limit { next = last }
	return out, next, nil
}

func (p *Postgres) CreateSubscription(ctx context.Context, req model.SubscriptionRequest) (model.Subscription, error) {
	id := uuid.New().String()
	ev, _ := json.Marshal(req.Events)
	_, err := p.db.ExecContext(ctx, `INSERT INTO subscriptions (id, tenant_id, url, events, secret) VALUES ($1,$2,$3,$4,$5)`, id, req.TenantID, req.URL, ev, req.Secret)
	if err != nil { return model.Subscription{}, err }
	return model.Subscription{ID: id, TenantID: req.TenantID, URL: req.URL, Events: req.Events, Secret: req.Secret}, nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	ev, _ := json.Marshal([]string{eventType})
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND events @> $2::jsonb`, tenantID, ev)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []model.Subscription{}
	for rows.Next() {
		var s model.Subscription
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events); err != nil { return nil, err }
		s.TenantID = tenantID
		_ = json.Unmarshal(events, &s.Events)
		out = append(out, s)
	}
	return out, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	var rows *sql.Rows
	var err error
	if cursor != "" {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 AND id::text > $2 ORDER BY id LIMIT $3`, tenantID, cursor, limit)
	} else {
		rows, err = p.db.QueryContext(ctx, `SELECT id::text, url, secret, events FROM subscriptions WHERE tenant_id=$1 ORDER BY id LIMIT $2`, tenantID, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []model.Subscription{}
	var last string
	for rows.Next() {
		var s model.Subscription
		var ev []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &ev); err != nil { return nil, "", err }
		s.TenantID = tenantID
		_ = json.Unmarshal(ev, &s.Events)
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit { next = last }
	return out, next, nil
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return err
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload, status, attempts, next_attempt_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,'pending',0,now())`, id, tenantID, nullIfEmpty(subscriptionID), eventType, url, nullIfEmpty(secret), payload)
	if err != nil { return "", err }
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT id::text, tenant_id::text, COALESCE(subscription_id::text,''), event_type, url, COALESCE(secret,''), payload, status, attempts
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil { return nil, err }
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	if !success {
		if nextAttemptAt == nil {
			t := time.Now().Add(1 * time.Minute)
			nextAttemptAt = &t
		}
		_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='retry', last_error=$2, next_attempt_at=$3, updated_at=now(), response_code=$4, latency_ms=$5 WHERE id=$1`,
			id, nullIfEmpty(lastError), *nextAttemptAt, responseCode, latencyMs)
		return err
	}
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET attempts=attempts+1, status='delivered', delivered_at=now(), updated_at=now(), response_code=$2, latency_ms=$3 WHERE id=$1`, id, responseCode, latencyMs)
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', last_error=$2, updated_at=now(), response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, tenantID, status, cursor string, limit int) ([]map[string]any, string, error) {
	if limit <= 0 || limit > 500 { limit = 100 }
	q := `SELECT id::text, event_type, status, attempts, next_attempt_at, COALESCE(last_error,''), url FROM webhook_deliveries WHERE tenant_id=$1`
	var rows *sql.Rows
	var err error
	if status != "" {
		q += ` AND status=$2 ORDER BY id LIMIT $3`
		rows, err = p.db.QueryContext(ctx, q, tenantID, status, limit)
	} else {
		q += ` ORDER BY id LIMIT $2`
		rows, err = p.db.QueryContext(ctx, q, tenantID, limit)
	}
	if err != nil { return nil, "", err }
	defer rows.Close()
	out := []map[string]any{}
	var last string
	for rows.Next() {
		var id, typ, st, lastErr, url string
		var attempts int
		var nextAt sql.NullTime
		if err := rows.Scan(&id, &typ, &st, &attempts, &nextAt, &lastErr, &url); err != nil { return nil, "", err }
		m := map[string]any{"id": id, "eventType": typ, "status": st, "attempts": attempts, "url": url}
		if nextAt.Valid { m["nextAttemptAt"] = nextAt.Time }
		if lastErr != "" { m["lastError"] = lastErr }
		out = append(out, m)
		last = id
	}
	next := ""
	if len(out) == limit { next = last }
	return out, next, nil
}

func (p *Postgres) RetryWebhookDelivery(ctx context.Context, tenantID, id string) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='pending', next_attempt_at=now() WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	return err
}

func (p *Postgres) GetOptimizerConfig(ctx context.Context, tenantID string) (OptimizerConfig, bool, error) {
	var b []byte
	err := p.db.QueryRowContext(ctx, `SELECT config FROM optimizer_config WHERE tenant_id=$1`, tenantID).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) { return OptimizerConfig{}, false, nil }
	if err != nil { return OptimizerConfig{}, false, err }
	var cfg OptimizerConfig
	if err := json.Unmarshal(b, &cfg); err != nil { return OptimizerConfig{}, false, err }
	return cfg, true, nil
}

func (p *Postgres) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg OptimizerConfig) error {
	b, err := json.Marshal(cfg)
	if err != nil { return err }
	_, err = p.db.ExecContext(ctx, `INSERT INTO optimizer_config (tenant_id, config, updated_at) VALUES ($1,$2,now())
        ON CONFLICT (tenant_id) DO UPDATE SET config=EXCLUDED.config, updated_at=now()`, tenantID, b)
	return err
}

func (p *Postgres) SavePlanStats(ctx context.Context, tenantID, routeDate string, st opt.RunStats) error {
	b, err := json.Marshal(st)
	if err != nil { return err }
	_, err = p.db.ExecContext(ctx, `INSERT INTO plan_stats (tenant_id, route_date, stats, updated_at) VALUES ($1,$2,$3,now())
        ON CONFLICT (tenant_id, route_date) DO UPDATE SET stats=EXCLUDED.stats, updated_at=now()`, tenantID, routeDate, b)
	return err
}

func (p *Postgres) GetPlanStats(ctx context.Context, tenantID, routeDate string) (opt.RunStats, bool, error) {
	var b []byte
	err := p.db.QueryRowContext(ctx, `SELECT stats FROM plan_stats WHERE tenant_id=$1 AND route_date=$2`, tenantID, routeDate).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) { return opt.RunStats{}, false, nil }
	if err != nil { return opt.RunStats{}, false, err }
	var st opt.RunStats
	if err := json.Unmarshal(b, &st); err != nil { return opt.RunStats{}, false, err }
	return st, true, nil
}

func nullIfEmpty(s string) any {
	if s == "" { return nil }
	return s
}
