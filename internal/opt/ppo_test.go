package opt

import (
	"context"
	"reflect"
	"testing"

	"fleetopt/internal/model"
)

func TestRouteBuilderRespectsCapacity(t *testing.T) {
	orders := []model.Order{
		order("o1", 20, 40.71, -74.00),
		order("o2", 20, 40.72, -74.01),
		order("o3", 20, 40.73, -74.02),
	}
	in := instance(orders, []model.Vehicle{vehicle("v1", 45)})
	plan := NewRouteBuilder(nil).Solve(context.Background(), in)

	if len(plan.Routes) != 1 {
		t.Fatalf("expected one route, got %d", len(plan.Routes))
	}
	load := 0.0
	for _, s := range plan.Routes[0].Stops {
		for _, o := range orders {
			if o.ID == s.OrderID {
				load += o.WeightKg()
			}
		}
	}
	if load > 45 {
		t.Fatalf("route load %v exceeds capacity", load)
	}
	if len(plan.Unassigned) != 1 {
		t.Fatalf("expected one unassigned order, got %v", plan.Unassigned)
	}
}

func TestRouteBuilderIsDeterministic(t *testing.T) {
	orders := []model.Order{
		order("o1", 5, 40.71, -74.00),
		order("o2", 5, 40.72, -74.03),
		order("o3", 5, 40.69, -74.05),
		order("o4", 5, 40.74, -73.98),
	}
	vehicles := []model.Vehicle{vehicle("v1", 100), vehicle("v2", 100)}

	p1 := NewRouteBuilder(nil).Solve(context.Background(), instance(orders, vehicles))
	p2 := NewRouteBuilder(nil).Solve(context.Background(), instance(orders, vehicles))

	if !reflect.DeepEqual(stopOrder(p1), stopOrder(p2)) {
		t.Fatalf("identical inputs produced different routes: %v vs %v", stopOrder(p1), stopOrder(p2))
	}
}

func TestRouteBuilderPrefersUrgent(t *testing.T) {
	near := order("near-low", 5, 40.705, -74.00)
	near.Priority = model.PriorityLow
	far := order("far-urgent", 5, 40.74, -74.00)
	far.Priority = model.PriorityUrgent

	in := instance([]model.Order{near, far}, []model.Vehicle{vehicle("v1", 100)})
	plan := NewRouteBuilder(nil).Solve(context.Background(), in)

	if len(plan.Routes) != 1 || len(plan.Routes[0].Stops) != 2 {
		t.Fatalf("expected a single two-stop route, got %+v", plan.Routes)
	}
	// urgent weight 8 vs low weight 1 outweighs the ~4km distance gap
	if plan.Routes[0].Stops[0].OrderID != "far-urgent" {
		t.Fatalf("expected the urgent order first, got %s", plan.Routes[0].Stops[0].OrderID)
	}
}

func TestRouteBuilderAssignsEverythingAcrossFleet(t *testing.T) {
	orders := []model.Order{
		order("o1", 30, 40.71, -74.00),
		order("o2", 30, 40.72, -74.01),
		order("o3", 30, 40.73, -74.02),
	}
	vehicles := []model.Vehicle{vehicle("v1", 60), vehicle("v2", 60)}
	plan := NewRouteBuilder(nil).Solve(context.Background(), instance(orders, vehicles))

	if len(plan.Unassigned) != 0 {
		t.Fatalf("fleet has room for all orders, got unassigned %v", plan.Unassigned)
	}
	seen := map[string]bool{}
	for _, r := range plan.Routes {
		for _, s := range r.Stops {
			if seen[s.OrderID] {
				t.Fatalf("order %s assigned twice", s.OrderID)
			}
			seen[s.OrderID] = true
		}
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 assigned orders, got %d", len(seen))
	}
}

func TestHeuristicPolicyBreaksTiesByID(t *testing.T) {
	state := StepState{}
	cands := []Candidate{
		{OrderID: "b", DistanceKm: 2, SlackMin: 60, PriorityWeight: 2, TrafficMult: 1},
		{OrderID: "a", DistanceKm: 2, SlackMin: 60, PriorityWeight: 2, TrafficMult: 1},
	}
	if got := (HeuristicPolicy{}).SelectNext(state, cands); got != "a" {
		t.Fatalf("expected lexicographic tie-break to pick a, got %s", got)
	}
}

func TestHeuristicPolicyTakesLeastLateWhenNoneFeasible(t *testing.T) {
	state := StepState{}
	cands := []Candidate{
		{OrderID: "x", DistanceKm: 1, SlackMin: -40, PriorityWeight: 4, TrafficMult: 1},
		{OrderID: "y", DistanceKm: 5, SlackMin: -5, PriorityWeight: 1, TrafficMult: 1},
	}
	if got := (HeuristicPolicy{}).SelectNext(state, cands); got != "y" {
		t.Fatalf("expected least-late candidate, got %s", got)
	}
}

func stopOrder(p Plan) [][]string {
	var out [][]string
	for _, r := range p.Routes {
		var ids []string
		for _, s := range r.Stops {
			ids = append(ids, s.OrderID)
		}
		out = append(out, ids)
	}
	return out
}
