package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleetopt/internal/api"
	"fleetopt/internal/config"
	"fleetopt/internal/metrics"
)

func main() {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	logger := log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	metrics.RegisterDefault()

	srv, err := api.NewServer(cfg, logger)
	if err != nil {
		logger.Fatalf("failed to init server: %v", err)
	}

	mux := http.NewServeMux()

	// Optimization
	mux.HandleFunc("/v1/optimize", srv.OptimizeHandler)
	mux.HandleFunc("/v1/optimizations", srv.OptimizationsHandler)
	mux.HandleFunc("/v1/optimizations/", srv.OptimizationByIDHandler) // includes /latest, /ws
	mux.HandleFunc("/v1/optimizer/config", srv.OptimizerConfigHandler)
	mux.HandleFunc("/v1/admin/optimizer/config", srv.AdminOptimizerConfigHandler)

	// Inputs
	mux.HandleFunc("/v1/orders", srv.OrdersHandler)
	mux.HandleFunc("/v1/vehicles", srv.VehiclesHandler)

	// Subscriptions
	mux.HandleFunc("/v1/subscriptions", srv.SubscriptionsHandler)
	mux.HandleFunc("/v1/subscriptions/", srv.SubscriptionByIDHandler)

	// Admin
	mux.HandleFunc("/v1/admin/plan-metrics", srv.PlanMetricsHandler)

	// Health and operability
	mux.HandleFunc("/healthz", srv.HealthHandler)
	mux.HandleFunc("/readyz", srv.ReadyHandler)
	mux.HandleFunc("/debugz", srv.DebugJSON)
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	handler := api.RateLimitMiddleware(cfg.Rate.RPS, cfg.Rate.Burst, mux)
	handler = api.LogMiddleware(logger, handler)

	worker := srv.NewWebhookWorker()
	worker.Start()

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Printf("API listening on %s", addr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("server error: %v", err)
	}
}
