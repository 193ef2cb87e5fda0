package opt

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"fleetopt/internal/geo"
	"fleetopt/internal/model"
)

var day = time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

func window(fromHour, toHour int) model.TimeWindow {
	return model.TimeWindow{Start: day.Add(time.Duration(fromHour) * time.Hour), End: day.Add(time.Duration(toHour) * time.Hour)}
}

func order(id string, weight float64, lat, lng float64) model.Order {
	return model.Order{
		ID:         id,
		Address:    model.GeoPoint{Lat: lat, Lng: lng},
		Items:      []model.LineItem{{ProductID: "p-" + id, WeightKg: weight}},
		TimeWindow: window(9, 18),
		Priority:   model.PriorityMedium,
	}
}

func vehicle(id string, capacity float64) model.Vehicle {
	return model.Vehicle{
		ID:              id,
		Type:            model.VehicleVan,
		CapacityKg:      capacity,
		CurrentLocation: model.GeoPoint{Lat: 40.70, Lng: -74.00},
	}
}

func instance(orders []model.Order, vehicles []model.Vehicle) *Instance {
	cons := model.DefaultConstraints()
	return NewInstance(orders, vehicles, cons, nil, geo.UniformTraffic(1.0), day.Add(9*time.Hour))
}

func TestGeneticAssignsAllWithinCapacity(t *testing.T) {
	orders := []model.Order{
		order("o1", 10, 40.71, -74.00),
		order("o2", 20, 40.72, -74.01),
		order("o3", 15, 40.73, -74.02),
	}
	in := instance(orders, []model.Vehicle{vehicle("v1", 50)})
	plan, _ := SolveGenetic(context.Background(), in, GAParams{Generations: 30, PopulationSize: 40, Seed: 7})
	if len(plan.Unassigned) != 0 {
		t.Fatalf("expected no unassigned orders, got %v", plan.Unassigned)
	}
	if len(plan.Routes) != 1 {
		t.Fatalf("expected one route, got %d", len(plan.Routes))
	}
	if got := len(plan.Routes[0].Stops); got != 3 {
		t.Fatalf("expected 3 stops, got %d", got)
	}
	for i, s := range plan.Routes[0].Stops {
		if s.Sequence != i+1 {
			t.Fatalf("stop %d has sequence %d", i, s.Sequence)
		}
	}
	if plan.Infeasible {
		t.Fatalf("feasible instance flagged infeasible")
	}
}

func TestGeneticLeavesOverflowUnassigned(t *testing.T) {
	orders := []model.Order{
		order("o1", 30, 40.71, -74.00),
		order("o2", 30, 40.72, -74.01),
	}
	in := instance(orders, []model.Vehicle{vehicle("v1", 50)})
	plan, _ := SolveGenetic(context.Background(), in, GAParams{Generations: 20, PopulationSize: 30, Seed: 3})
	if len(plan.Unassigned) != 1 {
		t.Fatalf("expected exactly one unassigned order, got %v", plan.Unassigned)
	}
	if got := len(plan.Routes[0].Stops); got != 1 {
		t.Fatalf("expected one stop on the route, got %d", got)
	}
}

func TestGeneticOverflowModeKeepsOrders(t *testing.T) {
	orders := []model.Order{
		order("o1", 30, 40.71, -74.00),
		order("o2", 30, 40.72, -74.01),
	}
	in := instance(orders, []model.Vehicle{vehicle("v1", 50)})
	plan, _ := SolveGenetic(context.Background(), in, GAParams{Generations: 20, PopulationSize: 30, Seed: 3, AllowOverflow: true})
	if len(plan.Unassigned) != 0 {
		t.Fatalf("overflow mode should assign everything, got unassigned %v", plan.Unassigned)
	}
	if plan.OverflowKg <= 0 {
		t.Fatalf("expected nonzero capacity overflow, got %v", plan.OverflowKg)
	}
	if !plan.Infeasible {
		t.Fatalf("overflowed plan should be flagged infeasible")
	}
}

func TestGeneticSeededRunsReproduce(t *testing.T) {
	orders := []model.Order{
		order("o1", 5, 40.71, -74.00),
		order("o2", 5, 40.72, -74.03),
		order("o3", 5, 40.69, -74.05),
		order("o4", 5, 40.74, -73.98),
		order("o5", 5, 40.68, -74.01),
	}
	vehicles := []model.Vehicle{vehicle("v1", 100), vehicle("v2", 100)}
	params := GAParams{Generations: 40, PopulationSize: 50, Seed: 42}

	p1, s1 := SolveGenetic(context.Background(), instance(orders, vehicles), params)
	p2, s2 := SolveGenetic(context.Background(), instance(orders, vehicles), params)

	if len(s1.BestHistory) != len(s2.BestHistory) {
		t.Fatalf("history lengths differ: %d vs %d", len(s1.BestHistory), len(s2.BestHistory))
	}
	for i := range s1.BestHistory {
		if s1.BestHistory[i] != s2.BestHistory[i] {
			t.Fatalf("generation %d diverged: %v vs %v", i, s1.BestHistory[i], s2.BestHistory[i])
		}
		if i > 0 && s1.BestHistory[i] > s1.BestHistory[i-1] {
			t.Fatalf("best fitness increased at generation %d: %v -> %v", i, s1.BestHistory[i-1], s1.BestHistory[i])
		}
	}
	if p1.TotalKm != p2.TotalKm {
		t.Fatalf("plans diverged: %v km vs %v km", p1.TotalKm, p2.TotalKm)
	}
}

func TestGeneticNeverDuplicatesOrders(t *testing.T) {
	orders := []model.Order{
		order("o1", 10, 40.71, -74.00),
		order("o2", 10, 40.72, -74.03),
		order("o3", 10, 40.69, -74.05),
		order("o4", 10, 40.74, -73.98),
	}
	vehicles := []model.Vehicle{vehicle("v1", 25), vehicle("v2", 25)}
	plan, _ := SolveGenetic(context.Background(), instance(orders, vehicles), GAParams{Generations: 25, PopulationSize: 30, Seed: 11})
	seen := map[string]bool{}
	for _, r := range plan.Routes {
		for _, s := range r.Stops {
			if seen[s.OrderID] {
				t.Fatalf("order %s assigned twice", s.OrderID)
			}
			seen[s.OrderID] = true
		}
	}
	for _, id := range plan.Unassigned {
		if seen[id] {
			t.Fatalf("order %s both assigned and unassigned", id)
		}
	}
}

func TestGeneticEarlyStop(t *testing.T) {
	orders := []model.Order{
		order("o1", 5, 40.71, -74.00),
		order("o2", 5, 40.72, -74.01),
	}
	in := instance(orders, []model.Vehicle{vehicle("v1", 100)})
	_, stats := SolveGenetic(context.Background(), in, GAParams{Generations: 200, PopulationSize: 20, Seed: 5, EarlyStop: true, Patience: 5})
	if !stats.StoppedEarly {
		t.Fatalf("two-order instance should converge well before 200 generations")
	}
	if stats.Generations >= 200 {
		t.Fatalf("early stop did not shorten the run: %d generations", stats.Generations)
	}
}

func TestOrderCrossoverIsPermutation(t *testing.T) {
	a := []int{0, 1, 2, 3, 4, 5, 6}
	b := []int{6, 5, 4, 3, 2, 1, 0}
	rng := rand.New(rand.NewSource(9))
	for i := 0; i < 50; i++ {
		child := orderCrossover(a, b, rng)
		seen := make([]bool, len(a))
		for _, v := range child {
			if v < 0 || v >= len(a) || seen[v] {
				t.Fatalf("child is not a permutation: %v", child)
			}
			seen[v] = true
		}
	}
}

func TestMutatePreservesElements(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	for i := 0; i < 50; i++ {
		perm := []int{0, 1, 2, 3, 4, 5}
		mutate(perm, rng)
		seen := make([]bool, len(perm))
		for _, v := range perm {
			if seen[v] {
				t.Fatalf("mutation duplicated element: %v", perm)
			}
			seen[v] = true
		}
	}
}
