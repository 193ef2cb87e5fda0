package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleetopt/internal/config"
	"fleetopt/internal/model"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(config.Config{}, nil)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return srv
}

func optimizeBody() model.OptimizeRequest {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	win := model.TimeWindow{Start: day.Add(9 * time.Hour), End: day.Add(18 * time.Hour)}
	return model.OptimizeRequest{
		Orders: []model.Order{
			{ID: "o1", Address: model.GeoPoint{Lat: 40.71, Lng: -74.00}, Items: []model.LineItem{{ProductID: "p1", WeightKg: 10}}, TimeWindow: win},
			{ID: "o2", Address: model.GeoPoint{Lat: 40.72, Lng: -74.01}, Items: []model.LineItem{{ProductID: "p2", WeightKg: 20}}, TimeWindow: win},
			{ID: "o3", Address: model.GeoPoint{Lat: 40.73, Lng: -74.02}, Items: []model.LineItem{{ProductID: "p3", WeightKg: 15}}, TimeWindow: win},
		},
		Vehicles: []model.Vehicle{
			{ID: "v1", CapacityKg: 50, CurrentLocation: model.GeoPoint{Lat: 40.70, Lng: -74.00}},
		},
		OptimizationType: model.AlgorithmGenetic,
		GA:               &model.GAConfig{Generations: 30, PopulationSize: 40, Seed: 3},
		DepartAt:         day.Add(9 * time.Hour),
	}
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestOptimizeHappyPath(t *testing.T) {
	srv := newTestServer(t)
	w := postJSON(t, srv.OptimizeHandler, "/v1/optimize", optimizeBody(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res model.OptimizationResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.AlgorithmUsed != model.AlgorithmGenetic {
		t.Fatalf("algorithm_used = %s", res.AlgorithmUsed)
	}
	if len(res.Routes) != 1 || len(res.Routes[0].Stops) != 3 {
		t.Fatalf("expected one route with all stops, got %+v", res.Routes)
	}
	if len(res.UnassignedOrderIDs) != 0 {
		t.Fatalf("unassigned = %v", res.UnassignedOrderIDs)
	}
	if res.OptimizationID == "" {
		t.Fatalf("missing optimization id")
	}
}

func TestOptimizePersistsAndServesLatest(t *testing.T) {
	srv := newTestServer(t)
	w := postJSON(t, srv.OptimizeHandler, "/v1/optimize", optimizeBody(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var res model.OptimizationResult
	_ = json.Unmarshal(w.Body.Bytes(), &res)

	req := httptest.NewRequest(http.MethodGet, "/v1/optimizations/"+res.OptimizationID, nil)
	rec := httptest.NewRecorder()
	srv.OptimizationByIDHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get by id = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/optimizations/latest", nil)
	rec = httptest.NewRecorder()
	srv.OptimizationByIDHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("latest = %d", rec.Code)
	}
	var latest model.OptimizationResult
	_ = json.Unmarshal(rec.Body.Bytes(), &latest)
	if latest.OptimizationID != res.OptimizationID {
		t.Fatalf("latest id = %s, want %s", latest.OptimizationID, res.OptimizationID)
	}
}

func TestOptimizeLatestMissing(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/optimizations/latest", nil)
	rec := httptest.NewRecorder()
	srv.OptimizationByIDHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestOptimizeRejectsEmptyOrders(t *testing.T) {
	srv := newTestServer(t)
	body := optimizeBody()
	body.Orders = nil
	w := postJSON(t, srv.OptimizeHandler, "/v1/optimize", body, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	var prob Problem
	if err := json.Unmarshal(w.Body.Bytes(), &prob); err != nil {
		t.Fatalf("decode problem: %v", err)
	}
	if prob.Status != http.StatusBadRequest || prob.Title == "" {
		t.Fatalf("problem = %+v", prob)
	}
}

func TestOptimizeDropsMalformedOrderAndReportsIt(t *testing.T) {
	srv := newTestServer(t)
	body := optimizeBody()
	body.Orders = append(body.Orders, model.Order{ID: "bad"})
	w := postJSON(t, srv.OptimizeHandler, "/v1/optimize", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var res optimizeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(res.RejectedOrderIDs) != 1 || res.RejectedOrderIDs[0] != "bad" {
		t.Fatalf("rejected_order_ids = %v", res.RejectedOrderIDs)
	}
	if len(res.Routes) == 0 {
		t.Fatalf("remaining orders must still be solved")
	}
}

func TestOptimizeForbiddenForViewer(t *testing.T) {
	srv := newTestServer(t)
	w := postJSON(t, srv.OptimizeHandler, "/v1/optimize", optimizeBody(), map[string]string{"X-Role": "viewer"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestOptimizePublishesBrokerEvents(t *testing.T) {
	srv := newTestServer(t)
	ch := srv.Broker.Subscribe("t_demo")
	defer srv.Broker.Unsubscribe("t_demo", ch)

	w := postJSON(t, srv.OptimizeHandler, "/v1/optimize", optimizeBody(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	types := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case evt := <-ch:
			types[evt.Type] = true
		default:
			t.Fatalf("expected 2 buffered events, got %v", types)
		}
	}
	if !types["optimization.started"] || !types["optimization.completed"] {
		t.Fatalf("event types = %v", types)
	}
}

func TestOrdersRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{"orders": []model.Order{
		{ID: "o1", Address: model.GeoPoint{Lat: 40.7, Lng: -74.0}},
		{ID: "o2", Address: model.GeoPoint{Lat: 40.8, Lng: -74.1}},
	}}
	w := postJSON(t, srv.OrdersHandler, "/v1/orders", body, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("create status = %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/orders", nil)
	rec := httptest.NewRecorder()
	srv.OrdersHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var out struct {
		Items []model.Order `json:"items"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if len(out.Items) != 2 {
		t.Fatalf("items = %d", len(out.Items))
	}
}

func TestAdminOptimizerConfigRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	body := map[string]any{"config": model.GAConfig{Generations: 80, PopulationSize: 60}}
	w := postJSON(t, srv.AdminOptimizerConfigHandler, "/v1/admin/optimizer/config", body, nil)
	// postJSON issues POST; the admin handler only accepts GET/PUT
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("post status = %d", w.Code)
	}

	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPut, "/v1/admin/optimizer/config", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	srv.AdminOptimizerConfigHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/optimizer/config", nil)
	rec = httptest.NewRecorder()
	srv.OptimizerConfigHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var out struct {
		Overrides model.GAConfig `json:"overrides"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out.Overrides.Generations != 80 {
		t.Fatalf("overrides = %+v", out.Overrides)
	}
}

func TestAdminConfigForbiddenForDispatcher(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/optimizer/config", nil)
	req.Header.Set("X-Role", "dispatcher")
	rec := httptest.NewRecorder()
	srv.AdminOptimizerConfigHandler(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSubscriptionsLifecycle(t *testing.T) {
	srv := newTestServer(t)
	w := postJSON(t, srv.SubscriptionsHandler, "/v1/subscriptions", model.Subscription{
		URL:    "https://hooks.example/opt",
		Events: []string{"optimization.completed"},
		Secret: "s3cret",
	}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", w.Code, w.Body.String())
	}
	var sub model.Subscription
	_ = json.Unmarshal(w.Body.Bytes(), &sub)
	if sub.ID == "" {
		t.Fatalf("subscription id not assigned")
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/subscriptions", nil)
	rec := httptest.NewRecorder()
	srv.SubscriptionsHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil)
	rec = httptest.NewRecorder()
	srv.SubscriptionByIDHandler(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/v1/subscriptions/"+sub.ID, nil)
	rec = httptest.NewRecorder()
	srv.SubscriptionByIDHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("double delete status = %d", rec.Code)
	}
}

func TestPlanMetricsAfterSolve(t *testing.T) {
	srv := newTestServer(t)
	if w := postJSON(t, srv.OptimizeHandler, "/v1/optimize", optimizeBody(), nil); w.Code != http.StatusOK {
		t.Fatalf("optimize status = %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/plan-metrics", nil)
	rec := httptest.NewRecorder()
	srv.PlanMetricsHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out struct {
		Items map[string]json.RawMessage `json:"items"`
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if _, ok := out.Items["genetic_algorithm"]; !ok {
		t.Fatalf("missing genetic stats: %s", rec.Body.String())
	}
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz = %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	srv.ReadyHandler(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readyz = %d", rec.Code)
	}
}
