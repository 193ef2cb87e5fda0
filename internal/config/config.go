// Package config loads service configuration: built-in defaults, then an
// optional YAML file (CONFIG_PATH), then environment variables. Env wins.
package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration decodes from YAML strings like "500ms" or "2s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	td, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(td)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the process-level configuration. Connection strings left empty
// select the in-process fallbacks (memory store, in-memory broker, no matrix
// provider, no ML service).
type Config struct {
	Port        int    `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	Matrix MatrixConfig `yaml:"matrix"`
	ML     MLConfig     `yaml:"ml"`
	Solver SolverConfig `yaml:"solver"`
	Rate   RateConfig   `yaml:"rate"`
}

type MatrixConfig struct {
	URL      string   `yaml:"url"`
	Profile  string   `yaml:"profile"`
	APIKey   string   `yaml:"api_key"`
	Timeout  Duration `yaml:"timeout"`
	CacheTTL Duration `yaml:"cache_ttl"`
}

type MLConfig struct {
	URL     string   `yaml:"url"`
	APIKey  string   `yaml:"api_key"`
	Timeout Duration `yaml:"timeout"`
	RPS     float64  `yaml:"rps"`
	Burst   int      `yaml:"burst"`
	// PolicyEnabled routes per-step stop selection through the model server's
	// trained policy instead of the local heuristic.
	PolicyEnabled bool `yaml:"policy_enabled"`
}

type SolverConfig struct {
	Budget        Duration `yaml:"budget"`         // per-solver cap in hybrid/auto
	RequestBudget Duration `yaml:"request_budget"` // whole optimize call
}

type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

func defaults() Config {
	return Config{
		Port: 8080,
		Matrix: MatrixConfig{
			Profile:  "driving-car",
			Timeout:  Duration(5 * time.Second),
			CacheTTL: Duration(10 * time.Minute),
		},
		ML: MLConfig{
			Timeout: Duration(10 * time.Second),
			RPS:     5,
			Burst:   5,
		},
		Solver: SolverConfig{
			Budget:        Duration(20 * time.Second),
			RequestBudget: Duration(60 * time.Second),
		},
		Rate: RateConfig{
			RPS:   50,
			Burst: 100,
		},
	}
}

// Load assembles the effective configuration.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)

	cfg.Matrix.URL = getEnv("MATRIX_URL", cfg.Matrix.URL)
	cfg.Matrix.Profile = getEnv("MATRIX_PROFILE", cfg.Matrix.Profile)
	cfg.Matrix.APIKey = getEnv("MATRIX_API_KEY", cfg.Matrix.APIKey)
	cfg.Matrix.Timeout = getEnvDuration("MATRIX_TIMEOUT", cfg.Matrix.Timeout)
	cfg.Matrix.CacheTTL = getEnvDuration("MATRIX_CACHE_TTL", cfg.Matrix.CacheTTL)

	cfg.ML.URL = getEnv("ML_SERVICE_URL", cfg.ML.URL)
	cfg.ML.APIKey = getEnv("ML_SERVICE_API_KEY", cfg.ML.APIKey)
	cfg.ML.Timeout = getEnvDuration("ML_SERVICE_TIMEOUT", cfg.ML.Timeout)
	cfg.ML.RPS = getEnvFloat("ML_SERVICE_RPS", cfg.ML.RPS)
	cfg.ML.Burst = getEnvInt("ML_SERVICE_BURST", cfg.ML.Burst)
	cfg.ML.PolicyEnabled = getEnvBool("ML_POLICY_ENABLED", cfg.ML.PolicyEnabled)

	cfg.Solver.Budget = getEnvDuration("SOLVER_BUDGET", cfg.Solver.Budget)
	cfg.Solver.RequestBudget = getEnvDuration("SOLVER_REQUEST_BUDGET", cfg.Solver.RequestBudget)

	cfg.Rate.RPS = getEnvFloat("RATE_RPS", cfg.Rate.RPS)
	cfg.Rate.Burst = getEnvInt("RATE_BURST", cfg.Rate.Burst)
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return Duration(d)
		}
	}
	return defaultValue
}
