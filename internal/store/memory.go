package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetopt/internal/model"
)

// Memory is the in-memory store used when no DATABASE_URL is set. Suitable
// for development and tests; everything is lost on restart.
type Memory struct {
	mu         sync.Mutex
	orders     map[string][]model.Order              // tenant -> orders
	vehicles   map[string][]model.Vehicle            // tenant -> vehicles
	results    map[string]map[string]*model.OptimizationResult // tenant -> id -> result
	resultIDs  map[string][]string                   // tenant -> ids in insert order
	optCfg     map[string]model.GAConfig             // tenant -> solver config
	subs       map[string][]model.Subscription       // tenant -> subscriptions
	deliveries map[string]*memDelivery               // id -> delivery
	queue      []string                              // delivery ids in enqueue order
}

type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
}

func NewMemory() *Memory {
	return &Memory{
		orders:     map[string][]model.Order{},
		vehicles:   map[string][]model.Vehicle{},
		results:    map[string]map[string]*model.OptimizationResult{},
		resultIDs:  map[string][]string{},
		optCfg:     map[string]model.GAConfig{},
		subs:       map[string][]model.Subscription{},
		deliveries: map[string]*memDelivery{},
	}
}

func (m *Memory) CreateOrders(ctx context.Context, tenantID string, orders []model.Order) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := 0
	for _, o := range orders {
		if o.ID == "" {
			o.ID = uuid.NewString()
		}
		m.orders[tenantID] = append(m.orders[tenantID], o)
		created++
	}
	return created, nil
}

func (m *Memory) ListOrders(ctx context.Context, tenantID, cursor string, limit int) ([]model.Order, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.orders[tenantID]
	items, next := pageOrders(all, cursor, limit)
	return items, next, nil
}

func pageOrders(all []model.Order, cursor string, limit int) ([]model.Order, string) {
	start := 0
	if cursor != "" {
		for i, o := range all {
			if o.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	out := append([]model.Order(nil), all[start:end]...)
	next := ""
	if end < len(all) && len(out) > 0 {
		next = out[len(out)-1].ID
	}
	return out, next
}

func (m *Memory) CreateVehicles(ctx context.Context, tenantID string, vehicles []model.Vehicle) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := 0
	for _, v := range vehicles {
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		m.vehicles[tenantID] = append(m.vehicles[tenantID], v)
		created++
	}
	return created, nil
}

func (m *Memory) ListVehicles(ctx context.Context, tenantID, cursor string, limit int) ([]model.Vehicle, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.vehicles[tenantID]
	start := 0
	if cursor != "" {
		for i, v := range all {
			if v.ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	out := append([]model.Vehicle(nil), all[start:end]...)
	next := ""
	if end < len(all) && len(out) > 0 {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) SaveOptimization(ctx context.Context, tenantID string, res *model.OptimizationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.results[tenantID] == nil {
		m.results[tenantID] = map[string]*model.OptimizationResult{}
	}
	m.results[tenantID][res.OptimizationID] = res
	m.resultIDs[tenantID] = append(m.resultIDs[tenantID], res.OptimizationID)
	return nil
}

func (m *Memory) GetOptimization(ctx context.Context, tenantID, id string) (*model.OptimizationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.results[tenantID][id]
	if !ok {
		return nil, ErrNotFound
	}
	return res, nil
}

func (m *Memory) ListOptimizations(ctx context.Context, tenantID, cursor string, limit int) ([]model.OptimizationResult, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := m.resultIDs[tenantID]
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
		limit = 50
	}
	out := []model.OptimizationResult{}
	var last string
	for i := start; i < len(ids) && len(out) < limit; i++ {
		out = append(out, *m.results[tenantID][ids[i]])
		last = ids[i]
	}
	next := ""
	if start+len(out) < len(ids) {
		next = last
	}
	return out, next, nil
}

func (m *Memory) GetOptimizerConfig(ctx context.Context, tenantID string) (model.GAConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.optCfg[tenantID]
	if !ok {
		return model.GAConfig{}, ErrNotFound
	}
	return cfg, nil
}

func (m *Memory) SaveOptimizerConfig(ctx context.Context, tenantID string, cfg model.GAConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.optCfg[tenantID] = cfg
	return nil
}

func (m *Memory) CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = time.Now().UTC()
	m.subs[sub.TenantID] = append(m.subs[sub.TenantID], sub)
	return sub, nil
}

func (m *Memory) ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.subs[tenantID]
	start := 0
	if cursor != "" {
		for i := range all {
			if all[i].ID == cursor {
				start = i + 1
				break
			}
		}
	}
	if limit <= 0 {
		limit = 100
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	out := append([]model.Subscription(nil), all[start:end]...)
	next := ""
	if end < len(all) && len(out) > 0 {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (m *Memory) DeleteSubscription(ctx context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.subs[tenantID]
	for i := range list {
		if list[i].ID == id {
			m.subs[tenantID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
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

func (m *Memory) EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{
			ID:             id,
			TenantID:       tenantID,
			SubscriptionID: subscriptionID,
			EventType:      eventType,
			URL:            url,
			Secret:         secret,
			Payload:        payload,
			Status:         "pending",
		},
		NextAttemptAt: time.Now().UTC(),
	}
	m.queue = append(m.queue, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 {
		limit = 10
	}
	now := time.Now().UTC()
	var out []WebhookDelivery
	for _, id := range m.queue {
		d := m.deliveries[id]
		if d == nil || d.Status != "pending" || d.NextAttemptAt.After(now) {
			continue
		}
		out = append(out, d.WebhookDelivery)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deliveries[id]
	if !ok {
		return ErrNotFound
	}
	d.Attempts++
	d.LastError = lastError
	d.ResponseCode = responseCode
	switch {
	case success:
		d.Status = "delivered"
	case nextAttemptAt != nil:
		d.NextAttemptAt = *nextAttemptAt
	default:
		d.Status = "failed"
	}
	return nil
}
