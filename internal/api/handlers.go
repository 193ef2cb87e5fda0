package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fleetopt/internal/metrics"
	"fleetopt/internal/model"
	"fleetopt/internal/opt"
	"fleetopt/internal/store"
	"fleetopt/internal/webhooks"
)

// optimizeResponse is the OptimizationResult plus the IDs of orders the
// boundary validation dropped from the batch.
type optimizeResponse struct {
	*model.OptimizationResult
	RejectedOrderIDs []string `json:"rejected_order_ids,omitempty"`
}

// OptimizeHandler handles POST /v1/optimize.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.CanOptimize() {
		writeProblem(w, 403, "Forbidden", "dispatcher or admin required", r.URL.Path)
		return
	}
	var req model.OptimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	rejected, err := validateOptimizeRequest(&req)
	if err != nil {
		writeValidationProblem(w, err.Error(), r.URL.Path, rejected)
		return
	}
	if req.TenantID == "" {
		req.TenantID = p.Tenant
	}
	// Stored tenant overrides apply when the request carries no GA section.
	if req.GA == nil {
		if cfg, err := s.Store.GetOptimizerConfig(r.Context(), req.TenantID); err == nil {
			req.GA = &cfg
		}
	}

	budget := s.Cfg.Solver.RequestBudget.Std()
	if budget <= 0 {
		budget = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(r.Context(), budget)
	defer cancel()

	s.Broker.Publish(req.TenantID, Event{Type: "optimization.started", Data: map[string]any{
		"orders":   len(req.Orders),
		"vehicles": len(req.Vehicles),
		"mode":     string(req.OptimizationType),
	}})

	started := time.Now()
	res := s.Opt.Solve(ctx, req)

	outcome := "ok"
	if res.Infeasible {
		outcome = "infeasible"
	}
	metrics.Optimizations.WithLabelValues(string(res.AlgorithmUsed), outcome).Inc()
	metrics.OptimizationDuration.WithLabelValues(string(res.AlgorithmUsed)).Observe(time.Since(started).Seconds())

	if err := s.Store.SaveOptimization(ctx, req.TenantID, res); err != nil {
		// The solve already succeeded; a persistence hiccup must not turn it
		// into a caller-visible failure.
		s.logf("save optimization %s failed: %v", res.OptimizationID, err)
	}
	s.Latest.Put(req.TenantID, res)

	s.Broker.Publish(req.TenantID, Event{Type: "optimization.completed", Data: map[string]any{
		"optimization_id":   res.OptimizationID,
		"algorithm_used":    string(res.AlgorithmUsed),
		"total_distance_km": res.TotalDistanceKm,
		"routes":            len(res.Routes),
		"unassigned":        len(res.UnassignedOrderIDs),
	}})
	s.Pub.Emit(r.Context(), req.TenantID, webhooks.EventOptimizationCompleted, map[string]any{
		"optimization_id":   res.OptimizationID,
		"algorithm_used":    string(res.AlgorithmUsed),
		"total_distance_km": res.TotalDistanceKm,
		"total_fuel_cost":   res.TotalFuelCost,
		"unassigned":        len(res.UnassignedOrderIDs),
	})

	writeJSON(w, http.StatusOK, optimizeResponse{OptimizationResult: res, RejectedOrderIDs: rejected})
}

// OptimizationsHandler handles GET /v1/optimizations.
func (s *Server) OptimizationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimizations" {
		writeProblem(w, http.StatusNotFound, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListOptimizations(r.Context(), p.Tenant, cursor, limit)
	if err != nil {
		writeProblem(w, 500, "List optimizations failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items, "next_cursor": next})
}

// OptimizationByIDHandler handles GET /v1/optimizations/{id}; the reserved
// ids "latest" and "ws" map to the cache lookup and the progress stream.
func (s *Server) OptimizationByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/optimizations/")
	if rest == r.URL.Path || rest == "" {
		writeProblem(w, http.StatusNotFound, "Not Found", "missing id", r.URL.Path)
		return
	}
	if rest == "ws" {
		s.StreamHandler(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if rest == "latest" {
		if res, ok := s.Latest.Get(p.Tenant); ok {
			writeJSON(w, http.StatusOK, res)
			return
		}
		writeProblem(w, http.StatusNotFound, "No optimization yet", "", r.URL.Path)
		return
	}
	res, err := s.Store.GetOptimization(r.Context(), p.Tenant, rest)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, http.StatusNotFound, "Optimization not found", "", r.URL.Path)
			return
		}
		writeProblem(w, 500, "Get optimization failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// OrdersHandler handles POST/GET /v1/orders.
func (s *Server) OrdersHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	switch r.Method {
	case http.MethodPost:
		var req struct {
			TenantID string        `json:"tenant_id"`
			Orders   []model.Order `json:"orders"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.TenantID == "" {
			req.TenantID = p.Tenant
		}
		created, err := s.Store.CreateOrders(r.Context(), req.TenantID, req.Orders)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create orders failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"created": created})
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListOrders(r.Context(), p.Tenant, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List orders failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// VehiclesHandler handles POST/GET /v1/vehicles.
func (s *Server) VehiclesHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	switch r.Method {
	case http.MethodPost:
		var req struct {
			TenantID string          `json:"tenant_id"`
			Vehicles []model.Vehicle `json:"vehicles"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if req.TenantID == "" {
			req.TenantID = p.Tenant
		}
		created, err := s.Store.CreateVehicles(r.Context(), req.TenantID, req.Vehicles)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create vehicles failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"created": created})
	case http.MethodGet:
		cursor := r.URL.Query().Get("cursor")
		limit := 100
		if v := r.URL.Query().Get("limit"); v != "" {
			fmt.Sscanf(v, "%d", &limit)
		}
		items, next, err := s.Store.ListVehicles(r.Context(), p.Tenant, cursor, limit)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "List vehicles failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "next_cursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// OptimizerConfigHandler returns the effective solver configuration: the
// built-in defaults overlaid with the tenant's stored overrides.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/optimizer/config" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	defaults := map[string]any{
		"population_size":     100,
		"generations":         200,
		"crossover_rate":      0.8,
		"mutation_rate":       0.2,
		"elite_size":          10,
		"tournament_size":     5,
		"early_stop":          false,
		"early_stop_patience": 20,
	}
	out := map[string]any{"defaults": defaults}
	if cfg, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant); err == nil {
		out["overrides"] = cfg
	}
	writeJSON(w, 200, out)
}

// AdminOptimizerConfigHandler gets/sets the tenant override (admin only).
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
		cfg, err := s.Store.GetOptimizerConfig(r.Context(), p.Tenant)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 500, "Get config failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]any{"config": cfg})
	case http.MethodPut:
		var body struct {
			Config *model.GAConfig `json:"config"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeProblem(w, 400, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if body.Config == nil {
			writeProblem(w, 400, "Missing config", "", r.URL.Path)
			return
		}
		if err := s.Store.SaveOptimizerConfig(r.Context(), p.Tenant, *body.Config); err != nil {
			writeProblem(w, 500, "Save failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, map[string]bool{"ok": true})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionsHandler handles POST/GET /v1/subscriptions (admin only).
func (s *Server) SubscriptionsHandler(w http.ResponseWriter, r *http.Request) {
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	switch r.Method {
	case http.MethodPost:
		var sub model.Subscription
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
			return
		}
		if sub.URL == "" || len(sub.Events) == 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid subscription", "url and events are required", r.URL.Path)
			return
		}
		sub.TenantID = p.Tenant
		created, err := s.Store.CreateSubscription(r.Context(), sub)
		if err != nil {
			writeProblem(w, http.StatusInternalServerError, "Create subscription failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, http.StatusCreated, created)
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
		writeJSON(w, 200, map[string]any{"items": items, "next_cursor": next})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SubscriptionByIDHandler handles DELETE /v1/subscriptions/{id} (admin only).
func (s *Server) SubscriptionByIDHandler(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.URL.Path, "/v1/subscriptions/") {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/subscriptions/")
	if err := s.Store.DeleteSubscription(r.Context(), p.Tenant, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 404, "Subscription not found", "", r.URL.Path)
			return
		}
		writeProblem(w, 500, "Delete subscription failed", err.Error(), r.URL.Path)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PlanMetricsHandler returns the latest per-algorithm solve diagnostics for
// the tenant (admin only).
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	p := s.getPrincipal(r)
	if !p.IsAdmin() {
		writeProblem(w, 403, "Forbidden", "admin required", r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": opt.GetStats(p.Tenant)})
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, 200, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
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
