package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fleetopt/internal/model"
)

// HTTPProvider fetches travel matrices from an OpenRouteService-compatible
// matrix endpoint.
type HTTPProvider struct {
	baseURL string
	profile string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider builds a provider for the given base URL. An empty profile
// defaults to driving-car.
func NewHTTPProvider(baseURL, profile, apiKey string, timeout time.Duration) *HTTPProvider {
	if profile == "" {
		profile = "driving-car"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProvider{
		baseURL: baseURL,
		profile: profile,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type matrixRequest struct {
	Locations [][]float64 `json:"locations"`
	Metrics   []string    `json:"metrics"`
}

type matrixResponse struct {
	Distances [][]*float64 `json:"distances"`
	Durations [][]*float64 `json:"durations"`
}

// GetMatrix requests a full n x n matrix. The response is validated strictly;
// any hole in the provider data is treated as a provider failure so the
// caller can fall back to estimates.
func (p *HTTPProvider) GetMatrix(ctx context.Context, points []model.GeoPoint) (*Matrix, error) {
	if len(points) == 0 {
		return &Matrix{}, nil
	}
	locs := make([][]float64, 0, len(points))
	for _, pt := range points {
		// ORS expects [lng, lat]
		locs = append(locs, []float64{pt.Lng, pt.Lat})
	}
	payload, err := json.Marshal(matrixRequest{Locations: locs, Metrics: []string{"distance", "duration"}})
	if err != nil {
		return nil, fmt.Errorf("marshal matrix request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/matrix/%s", p.baseURL, p.profile)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", p.apiKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("matrix request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("matrix request failed: status %d", resp.StatusCode)
	}

	var mr matrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return nil, fmt.Errorf("decode matrix response: %w", err)
	}
	n := len(points)
	if len(mr.Distances) != n || len(mr.Durations) != n {
		return nil, fmt.Errorf("matrix shape mismatch: distances=%d durations=%d want %d",
			len(mr.Distances), len(mr.Durations), n)
	}

	m := &Matrix{N: n, DistKm: make([][]float64, n), DurMin: make([][]float64, n)}
	for i := 0; i < n; i++ {
		if len(mr.Distances[i]) != n || len(mr.Durations[i]) != n {
			return nil, fmt.Errorf("matrix row %d length mismatch", i)
		}
		m.DistKm[i] = make([]float64, n)
		m.DurMin[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			dm := mr.Distances[i][j]
			ds := mr.Durations[i][j]
			if dm == nil || ds == nil {
				return nil, fmt.Errorf("matrix returned invalid metrics at [%d][%d]", i, j)
			}
			m.DistKm[i][j] = *dm / 1000.0
			m.DurMin[i][j] = *ds / 60.0
		}
	}
	return m, nil
}
