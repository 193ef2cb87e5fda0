package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetopt/internal/model"
)

// Postgres persists everything as JSONB documents keyed by tenant, which
// keeps the schema stable while the solver payloads evolve.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	p := &Postgres{db: db}
	if err := p.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return p, nil
}

// Ping reports database connectivity for readiness probes.
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS orders (
            id TEXT PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            payload JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS orders_tenant_idx ON orders (tenant_id, id)`,
		`CREATE TABLE IF NOT EXISTS vehicles (
            id TEXT PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            payload JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS vehicles_tenant_idx ON vehicles (tenant_id, id)`,
		`CREATE TABLE IF NOT EXISTS optimizations (
            id TEXT PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            algorithm TEXT NOT NULL,
            payload JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS optimizations_tenant_idx ON optimizations (tenant_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS optimizer_config (
            tenant_id TEXT PRIMARY KEY,
            cfg JSONB NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS subscriptions (
            id TEXT PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            url TEXT NOT NULL,
            secret TEXT NOT NULL DEFAULT '',
            events JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE TABLE IF NOT EXISTS webhook_deliveries (
            id TEXT PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            subscription_id TEXT NOT NULL,
            event_type TEXT NOT NULL,
            url TEXT NOT NULL,
            secret TEXT NOT NULL DEFAULT '',
            payload BYTEA NOT NULL,
            attempts INT NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'pending',
            last_error TEXT NOT NULL DEFAULT '',
            response_code INT NOT NULL DEFAULT 0,
            next_attempt_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS webhook_due_idx ON webhook_deliveries (status, next_attempt_at)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) CreateOrders(ctx context.Context, tenantID string, orders []model.Order) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	created := 0
	for _, o := range orders {
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		payload, err := json.Marshal(o)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO orders (id, tenant_id, payload) VALUES ($1,$2,$3)
             ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
			o.ID, tenantID, payload); err != nil {
			return 0, err
		}
		created++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

func (p *Postgres) ListOrders(ctx context.Context, tenantID, cursor string, limit int) ([]model.Order, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, payload FROM orders WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`,
		tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Order{}
	var last string
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, "", err
		}
		var o model.Order
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, "", err
		}
		out = append(out, o)
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) CreateVehicles(ctx context.Context, tenantID string, vehicles []model.Vehicle) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()
	created := 0
	for _, v := range vehicles {
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO vehicles (id, tenant_id, payload) VALUES ($1,$2,$3)
             ON CONFLICT (id) DO UPDATE SET payload = EXCLUDED.payload`,
			v.ID, tenantID, payload); err != nil {
			return 0, err
		}
		created++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

func (p *Postgres) ListVehicles(ctx context.Context, tenantID, cursor string, limit int) ([]model.Vehicle, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, payload FROM vehicles WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`,
		tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Vehicle{}
	var last string
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, "", err
		}
		var v model.Vehicle
		if err := json.Unmarshal(payload, &v); err != nil {
			return nil, "", err
		}
		out = append(out, v)
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) SaveOptimization(ctx context.Context, tenantID string, res *model.OptimizationResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO optimizations (id, tenant_id, algorithm, payload, created_at) VALUES ($1,$2,$3,$4,$5)`,
		res.OptimizationID, tenantID, string(res.AlgorithmUsed), payload, res.CreatedAt)
	return err
}

func (p *Postgres) GetOptimization(ctx context.Context, tenantID, id string) (*model.OptimizationResult, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT payload FROM optimizations WHERE tenant_id=$1 AND id=$2`, tenantID, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var res model.OptimizationResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (p *Postgres) ListOptimizations(ctx context.Context, tenantID, cursor string, limit int) ([]model.OptimizationResult, string, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, payload FROM optimizations WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`,
		tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.OptimizationResult{}
	var last string
	for rows.Next() {
		var id string
		var payload []byte
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, "", err
		}
		var res model.OptimizationResult
		if err := json.Unmarshal(payload, &res); err != nil {
			return nil, "", err
		}
		out = append(out, res)
		last = id
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) GetOptimizerConfig(ctx context.Context, tenantID string) (model.GAConfig, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT cfg FROM optimizer_config WHERE tenant_id=$1`, tenantID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GAConfig{}, ErrNotFound
	}
	if err != nil {
		return model.GAConfig{}, err
	}
	var cfg model.GAConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return model.GAConfig{}, err
	}
	return cfg, nil
}

func (p *Postgres) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg model.GAConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO optimizer_config (tenant_id, cfg, updated_at) VALUES ($1,$2,now())
         ON CONFLICT (tenant_id) DO UPDATE SET cfg = EXCLUDED.cfg, updated_at = now()`,
		tenantID, payload)
	return err
}

func (p *Postgres) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = time.Now().UTC()
	events, err := json.Marshal(sub.Events)
	if err != nil {
		return model.Subscription{}, err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO subscriptions (id, tenant_id, url, secret, events, created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		sub.ID, sub.TenantID, sub.URL, sub.Secret, events, sub.CreatedAt)
	if err != nil {
		return model.Subscription{}, err
	}
	return sub, nil
}

func (p *Postgres) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, url, secret, events, created_at FROM subscriptions WHERE tenant_id=$1 AND id > $2 ORDER BY id LIMIT $3`,
		tenantID, cursor, limit)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	out := []model.Subscription{}
	var last string
	for rows.Next() {
		s := model.Subscription{TenantID: tenantID}
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events, &s.CreatedAt); err != nil {
			return nil, "", err
		}
		if err := json.Unmarshal(events, &s.Events); err != nil {
			return nil, "", err
		}
		out = append(out, s)
		last = s.ID
	}
	next := ""
	if len(out) == limit {
		next = last
	}
	return out, next, rows.Err()
}

func (p *Postgres) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE tenant_id=$1 AND id=$2`, tenantID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, url, secret, events, created_at FROM subscriptions WHERE tenant_id=$1 AND events ? $2`,
		tenantID, eventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Subscription
	for rows.Next() {
		s := model.Subscription{TenantID: tenantID}
		var events []byte
		if err := rows.Scan(&s.ID, &s.URL, &s.Secret, &events, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(events, &s.Events); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.NewString()
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO webhook_deliveries (id, tenant_id, subscription_id, event_type, url, secret, payload)
         VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		id, tenantID, subscriptionID, eventType, url, secret, payload)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, tenant_id, subscription_id, event_type, url, secret, payload, attempts, status
         FROM webhook_deliveries
         WHERE status='pending' AND next_attempt_at <= now()
         ORDER BY next_attempt_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		if err := rows.Scan(&d.ID, &d.TenantID, &d.SubscriptionID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Attempts, &d.Status); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	status := "failed"
	if success {
		status = "delivered"
	} else if nextAttemptAt != nil {
		status = "pending"
	}
	var next any
	if nextAttemptAt != nil {
		next = *nextAttemptAt
	} else {
		next = time.Now().UTC()
	}
	_, err := p.db.ExecContext(ctx,
		`UPDATE webhook_deliveries
         SET attempts = attempts + 1, status = $2, last_error = $3, response_code = $4, next_attempt_at = $5
         WHERE id = $1`,
		id, status, lastError, responseCode, next)
	return err
}
