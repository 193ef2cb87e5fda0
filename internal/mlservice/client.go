// Package mlservice is the HTTP client for the external route-optimization
// ML service. The service is best-effort: callers treat every error as a cue
// to fall back to a local solver.
package mlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"fleetopt/internal/model"
)

// Client talks to the ML service. Requests are rate limited so a retry storm
// here never saturates the shared model server.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// New builds a client. rps <= 0 disables local rate limiting.
func New(baseURL, apiKey string, timeout time.Duration, rps float64, burst int) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var lim *rate.Limiter
	if rps > 0 {
		if burst <= 0 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
		limiter: lim,
	}
}

type mlAddress struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type mlOrder struct {
	OrderID string    `json:"orderId"`
	Address mlAddress `json:"address"`
}

type optimizeRequest struct {
	Orders []mlOrder `json:"orders"`
}

type optimizeResponse struct {
	OptimizedOrder []string `json:"optimizedOrder"`
}

// OptimizeOrder submits the orders and returns their IDs in the service's
// optimized visiting sequence.
func (c *Client) OptimizeOrder(ctx context.Context, orders []model.Order) ([]string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	body := optimizeRequest{Orders: make([]mlOrder, 0, len(orders))}
	for _, o := range orders {
		body.Orders = append(body.Orders, mlOrder{
			OrderID: o.ID,
			Address: mlAddress{Lat: o.Address.Lat, Lon: o.Address.Lng},
		})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/optimize-route", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ml service request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ml service returned status %d", resp.StatusCode)
	}
	var out optimizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode ml response: %w", err)
	}
	if len(out.OptimizedOrder) == 0 && len(orders) > 0 {
		return nil, fmt.Errorf("ml service returned an empty ordering")
	}
	return out.OptimizedOrder, nil
}
