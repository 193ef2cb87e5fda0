package mlservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"fleetopt/internal/opt"
)

type policyState struct {
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	ElapsedMin  float64 `json:"elapsedMin"`
	RemainingKg float64 `json:"remainingKg"`
}

type policyCandidate struct {
	OrderID        string  `json:"orderId"`
	DistanceKm     float64 `json:"distanceKm"`
	TravelMin      float64 `json:"travelMin"`
	BearingDeg     float64 `json:"bearingDeg"`
	SlackMin       float64 `json:"slackMin"`
	PriorityWeight float64 `json:"priorityWeight"`
	TrafficMult    float64 `json:"trafficMult"`
}

type policyRequest struct {
	State      policyState       `json:"state"`
	Candidates []policyCandidate `json:"candidates"`
}

type policyResponse struct {
	OrderID string `json:"orderId"`
}

// SelectNext asks the model server for the next stop given the step features.
func (c *Client) SelectNext(ctx context.Context, state opt.StepState, cands []opt.Candidate) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	body := policyRequest{
		State: policyState{
			Lat:         state.Location.Lat,
			Lon:         state.Location.Lng,
			ElapsedMin:  state.ElapsedMin,
			RemainingKg: state.RemainingKg,
		},
		Candidates: make([]policyCandidate, 0, len(cands)),
	}
	for _, cd := range cands {
		body.Candidates = append(body.Candidates, policyCandidate{
			OrderID:        cd.OrderID,
			DistanceKm:     cd.DistanceKm,
			TravelMin:      cd.TravelMin,
			BearingDeg:     cd.BearingDeg,
			SlackMin:       cd.SlackMin,
			PriorityWeight: cd.PriorityWeight,
			TrafficMult:    cd.TrafficMult,
		})
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/policy/select", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("policy request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("policy service returned status %d", resp.StatusCode)
	}
	var out policyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode policy response: %w", err)
	}
	if out.OrderID == "" {
		return "", fmt.Errorf("policy service returned no selection")
	}
	return out.OrderID, nil
}

// RemotePolicy adapts the model server's trained policy to the route
// builder's Policy interface. Any failure or bogus selection falls back to
// the local heuristic so route construction never stalls on the network.
type RemotePolicy struct {
	client   *Client
	fallback opt.Policy
}

func NewRemotePolicy(c *Client) *RemotePolicy {
	return &RemotePolicy{client: c, fallback: opt.HeuristicPolicy{}}
}

func (p *RemotePolicy) SelectNext(state opt.StepState, cands []opt.Candidate) string {
	if len(cands) == 0 {
		return ""
	}
	id, err := p.client.SelectNext(context.Background(), state, cands)
	if err == nil {
		for _, cd := range cands {
			if cd.OrderID == id {
				return id
			}
		}
	}
	return p.fallback.SelectNext(state, cands)
}
