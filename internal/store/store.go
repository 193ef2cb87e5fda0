package store

import (
	"context"
	"errors"
	"time"

	"fleetopt/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Orders
	CreateOrders(ctx context.Context, tenantID string, orders []model.Order) (created int, err error)
	ListOrders(ctx context.Context, tenantID, cursor string, limit int) (items []model.Order, nextCursor string, err error)

	// Vehicles
	CreateVehicles(ctx context.Context, tenantID string, vehicles []model.Vehicle) (created int, err error)
	ListVehicles(ctx context.Context, tenantID, cursor string, limit int) ([]model.Vehicle, string, error)

	// Optimization results
	SaveOptimization(ctx context.Context, tenantID string, res *model.OptimizationResult) error
	GetOptimization(ctx context.Context, tenantID, id string) (*model.OptimizationResult, error)
	ListOptimizations(ctx context.Context, tenantID, cursor string, limit int) ([]model.OptimizationResult, string, error)

	// Optimizer config per tenant
	GetOptimizerConfig(ctx context.Context, tenantID string) (model.GAConfig, error)
	SaveOptimizerConfig(ctx context.Context, tenantID string, cfg model.GAConfig) error

	// Subscriptions
	CreateSubscription(ctx context.Context, sub model.Subscription) (model.Subscription, error)
	ListSubscriptions(ctx context.Context, tenantID, cursor string, limit int) ([]model.Subscription, string, error)
	DeleteSubscription(ctx context.Context, tenantID, id string) error
	GetSubscriptionsForEvent(ctx context.Context, tenantID, eventType string) ([]model.Subscription, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, tenantID, subscriptionID, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int) error
}

// WebhookDelivery is one pending or completed webhook attempt.
type WebhookDelivery struct {
	ID             string
	TenantID       string
	SubscriptionID string
	EventType      string
	URL            string
	Secret         string
	Payload        []byte
	Attempts       int
	Status         string // pending, delivered, failed
}

var ErrNotFound = errors.New("not found")
