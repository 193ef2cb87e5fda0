package api

import (
	"log"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"fleetopt/internal/auth"
	"fleetopt/internal/config"
	"fleetopt/internal/matrix"
	"fleetopt/internal/metrics"
	"fleetopt/internal/mlservice"
	"fleetopt/internal/opt"
	"fleetopt/internal/store"
	"fleetopt/internal/webhooks"
)

type Server struct {
	Store  store.Store
	Opt    *opt.Orchestrator
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Broker EventBroker
	Latest *ResultCache
	Log    *log.Logger
	Cfg    config.Config
}

// NewServer wires the service from configuration. Empty connection strings
// select the in-process fallbacks: memory store, in-memory broker, no matrix
// provider, no ML service.
func NewServer(cfg config.Config, logger *log.Logger) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		s = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		s = pg
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		ropt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		rdb = redis.NewClient(ropt)
	}
	var broker EventBroker
	if rdb != nil {
		broker = NewRedisBroker(rdb)
	} else {
		broker = NewBroker()
	}

	var provider matrix.Provider
	if cfg.Matrix.URL != "" {
		provider = matrix.NewHTTPProvider(cfg.Matrix.URL, cfg.Matrix.Profile, cfg.Matrix.APIKey, cfg.Matrix.Timeout.Std())
		if rdb != nil {
			provider = matrix.NewCachedProvider(provider, rdb, cfg.Matrix.CacheTTL.Std())
		}
	}

	var remote opt.RemoteOptimizer
	var policy opt.Policy
	if cfg.ML.URL != "" {
		mlc := mlservice.New(cfg.ML.URL, cfg.ML.APIKey, cfg.ML.Timeout.Std(), cfg.ML.RPS, cfg.ML.Burst)
		remote = mlc
		if cfg.ML.PolicyEnabled {
			policy = mlservice.NewRemotePolicy(mlc)
		}
	}

	orch := &opt.Orchestrator{
		Matrix:        provider,
		Remote:        remote,
		Policy:        policy,
		Log:           logger,
		SolverBudget:  cfg.Solver.Budget.Std(),
		MatrixTimeout: cfg.Matrix.Timeout.Std(),
		OnMatrixFallback: func() {
			metrics.MatrixFallbacks.Inc()
		},
		OnSolverTimeout: func(algorithm string) {
			metrics.SolverTimeouts.WithLabelValues(algorithm).Inc()
		},
	}

	return &Server{
		Store:  s,
		Opt:    orch,
		Pub:    webhooks.NewPublisher(s),
		Auth:   auth.NewVerifierFromEnv(),
		Broker: broker,
		Latest: NewResultCache(),
		Log:    logger,
		Cfg:    cfg,
	}, nil
}

// NewWebhookWorker creates the background delivery worker bound to the
// server's store.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store)
}

func (s *Server) logf(format string, args ...any) {
	if s.Log != nil {
		s.Log.Printf(format, args...)
	}
}
