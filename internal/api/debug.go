package api

import (
	"net/http"
	"time"

	"fleetopt/internal/buildinfo"
)

// DebugJSON reports build and wiring info for operators. No secrets.
func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":           s.Cfg.Port,
			"has_database":   s.Cfg.DatabaseURL != "",
			"has_redis":      s.Cfg.RedisURL != "",
			"has_matrix":     s.Cfg.Matrix.URL != "",
			"has_ml_service": s.Cfg.ML.URL != "",
			"solver_budget":  s.Cfg.Solver.Budget.Std().String(),
			"request_budget": s.Cfg.Solver.RequestBudget.Std().String(),
			"rate_rps":       s.Cfg.Rate.RPS,
			"rate_burst":     s.Cfg.Rate.Burst,
		},
	})
}
