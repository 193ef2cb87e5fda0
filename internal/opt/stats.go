package opt

import (
	"sync"
	"time"
)

// SolveStats is the per-run diagnostic record kept for the admin surface.
type SolveStats struct {
	Algorithm    string    `json:"algorithm"`
	Orders       int       `json:"orders"`
	Vehicles     int       `json:"vehicles"`
	Unassigned   int       `json:"unassigned"`
	TotalKm      float64   `json:"total_km"`
	Fitness      float64   `json:"fitness"`
	Generations  int       `json:"generations,omitempty"`
	StoppedEarly bool      `json:"stopped_early,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	At           time.Time `json:"at"`
}

type statsKey struct {
	Tenant string
	Algo   string
}

var (
	statsMu sync.Mutex
	stats   = map[statsKey]SolveStats{}
)

// RecordStats keeps the latest run per tenant and algorithm.
func RecordStats(tenant, algo string, s SolveStats) {
	statsMu.Lock()
	stats[statsKey{Tenant: tenant, Algo: algo}] = s
	statsMu.Unlock()
}

// GetStats returns the recorded runs for a tenant, keyed by algorithm.
func GetStats(tenant string) map[string]SolveStats {
	statsMu.Lock()
	defer statsMu.Unlock()
	out := map[string]SolveStats{}
	for k, v := range stats {
		if k.Tenant == tenant {
			out[k.Algo] = v
		}
	}
	return out
}
