// Package matrix abstracts pairwise travel distance/duration lookups.
//
// The real provider is an external collaborator and must be treated as
// optional and unreliable: callers fall back to a haversine estimate when it
// fails or times out. Matrices are not assumed symmetric; duration with
// traffic may differ by direction.
package matrix

import (
	"context"

	"fleetopt/internal/geo"
	"fleetopt/internal/model"
)

// Matrix holds n x n travel costs between a fixed point list.
type Matrix struct {
	N      int         `json:"n"`
	DistKm [][]float64 `json:"dist_km"`
	DurMin [][]float64 `json:"dur_min"`
}

// Leg returns the distance (km) and duration (min) from point i to point j.
func (m *Matrix) Leg(i, j int) (float64, float64) {
	return m.DistKm[i][j], m.DurMin[i][j]
}

// Provider yields a full travel matrix for a point set.
type Provider interface {
	GetMatrix(ctx context.Context, points []model.GeoPoint) (*Matrix, error)
}

// estimateSpeedKph is the assumed average speed when no provider matrix is
// available.
const estimateSpeedKph = 40.0

// Estimate builds a haversine-based matrix, with durations scaled by the
// traffic factor. This is the local fallback for a failed provider.
func Estimate(points []model.GeoPoint, trafficFactor float64) *Matrix {
	if trafficFactor < 1.0 {
		trafficFactor = 1.0
	}
	n := len(points)
	m := &Matrix{N: n, DistKm: make([][]float64, n), DurMin: make([][]float64, n)}
	for i := 0; i < n; i++ {
		m.DistKm[i] = make([]float64, n)
		m.DurMin[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			d := geo.HaversineKm(points[i], points[j])
			m.DistKm[i][j] = d
			m.DurMin[i][j] = d / estimateSpeedKph * 60 * trafficFactor
		}
	}
	return m
}
