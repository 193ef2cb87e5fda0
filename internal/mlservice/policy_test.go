package mlservice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fleetopt/internal/opt"
)

func policyCands() []opt.Candidate {
	return []opt.Candidate{
		{OrderID: "o1", DistanceKm: 1, SlackMin: 60, PriorityWeight: 2, TrafficMult: 1},
		{OrderID: "o2", DistanceKm: 5, SlackMin: 60, PriorityWeight: 8, TrafficMult: 1},
	}
}

func TestRemotePolicySelectsServerChoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/policy/select" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		var req policyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(req.Candidates) != 2 || req.Candidates[1].PriorityWeight != 8 {
			t.Fatalf("bad candidates: %+v", req.Candidates)
		}
		json.NewEncoder(w).Encode(policyResponse{OrderID: "o2"})
	}))
	defer srv.Close()

	p := NewRemotePolicy(New(srv.URL, "", 0, 0, 0))
	if got := p.SelectNext(opt.StepState{}, policyCands()); got != "o2" {
		t.Fatalf("SelectNext = %q", got)
	}
}

func TestRemotePolicyFallsBackOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewRemotePolicy(New(srv.URL, "", 0, 0, 0))
	want := opt.HeuristicPolicy{}.SelectNext(opt.StepState{}, policyCands())
	if got := p.SelectNext(opt.StepState{}, policyCands()); got != want {
		t.Fatalf("fallback selection = %q, want %q", got, want)
	}
}

func TestRemotePolicyRejectsUnknownSelection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(policyResponse{OrderID: "ghost"})
	}))
	defer srv.Close()

	p := NewRemotePolicy(New(srv.URL, "", 0, 0, 0))
	want := opt.HeuristicPolicy{}.SelectNext(opt.StepState{}, policyCands())
	if got := p.SelectNext(opt.StepState{}, policyCands()); got != want {
		t.Fatalf("unknown id must fall back, got %q", got)
	}
}
