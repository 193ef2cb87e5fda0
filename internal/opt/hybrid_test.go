package opt

import (
	"context"
	"errors"
	"testing"
	"time"

	"fleetopt/internal/matrix"
	"fleetopt/internal/model"
)

type failingMatrix struct{}

func (failingMatrix) GetMatrix(context.Context, []model.GeoPoint) (*matrix.Matrix, error) {
	return nil, errors.New("provider down")
}

type fixedRemote struct {
	ids []string
	err error
}

func (r fixedRemote) OptimizeOrder(context.Context, []model.Order) ([]string, error) {
	return r.ids, r.err
}

func testRequest(orders []model.Order, vehicles []model.Vehicle, mode model.Algorithm) model.OptimizeRequest {
	return model.OptimizeRequest{
		Orders:           orders,
		Vehicles:         vehicles,
		OptimizationType: mode,
		GA:               &model.GAConfig{Generations: 20, PopulationSize: 30, Seed: 7},
		DepartAt:         day.Add(9 * time.Hour),
	}
}

func TestSolveSurvivesFailingMatrixProvider(t *testing.T) {
	orders := []model.Order{
		order("o1", 10, 40.71, -74.00),
		order("o2", 10, 40.72, -74.01),
	}
	vehicles := []model.Vehicle{vehicle("v1", 50)}
	fallbacks := 0
	o := &Orchestrator{Matrix: failingMatrix{}, OnMatrixFallback: func() { fallbacks++ }}

	res := o.Solve(context.Background(), testRequest(orders, vehicles, model.AlgorithmGenetic))

	if res == nil {
		t.Fatalf("expected a result despite the provider failure")
	}
	if res.AlgorithmUsed != model.AlgorithmGenetic {
		t.Fatalf("algorithm_used = %s, want genetic_algorithm", res.AlgorithmUsed)
	}
	if len(res.Routes) != 1 || len(res.UnassignedOrderIDs) != 0 {
		t.Fatalf("expected a full single-route plan, got %+v", res)
	}
	if fallbacks != 1 {
		t.Fatalf("matrix fallback hook fired %d times, want 1", fallbacks)
	}
}

func TestSolveHybridTagsResult(t *testing.T) {
	orders := []model.Order{
		order("o1", 10, 40.71, -74.00),
		order("o2", 10, 40.72, -74.03),
		order("o3", 10, 40.69, -74.05),
	}
	vehicles := []model.Vehicle{vehicle("v1", 100)}
	o := &Orchestrator{SolverBudget: 5 * time.Second}

	res := o.Solve(context.Background(), testRequest(orders, vehicles, model.AlgorithmHybrid))

	if res.AlgorithmUsed != model.AlgorithmHybrid {
		t.Fatalf("algorithm_used = %s, want hybrid", res.AlgorithmUsed)
	}
	if len(res.UnassignedOrderIDs) != 0 {
		t.Fatalf("easy instance left orders unassigned: %v", res.UnassignedOrderIDs)
	}
}

func TestSolveAutoUsesRemoteOrdering(t *testing.T) {
	orders := []model.Order{
		order("o1", 10, 40.71, -74.00),
		order("o2", 10, 40.72, -74.01),
	}
	vehicles := []model.Vehicle{vehicle("v1", 100)}
	o := &Orchestrator{Remote: fixedRemote{ids: []string{"o2", "o1"}}}

	res := o.Solve(context.Background(), testRequest(orders, vehicles, ""))

	if res.AlgorithmUsed != model.AlgorithmPPO {
		t.Fatalf("algorithm_used = %s, want ppo", res.AlgorithmUsed)
	}
	if res.Routes[0].Stops[0].OrderID != "o2" {
		t.Fatalf("remote ordering ignored: first stop %s", res.Routes[0].Stops[0].OrderID)
	}
}

func TestSolveAutoFallsBackToGenetic(t *testing.T) {
	orders := []model.Order{order("o1", 10, 40.71, -74.00)}
	vehicles := []model.Vehicle{vehicle("v1", 100)}
	o := &Orchestrator{Remote: fixedRemote{err: errors.New("timeout")}}

	res := o.Solve(context.Background(), testRequest(orders, vehicles, ""))

	if res.AlgorithmUsed != model.AlgorithmGenetic {
		t.Fatalf("algorithm_used = %s, want genetic_algorithm", res.AlgorithmUsed)
	}
	if len(res.Routes) != 1 {
		t.Fatalf("expected one route, got %d", len(res.Routes))
	}
}

func TestSolveAutoRejectsBogusRemoteOrdering(t *testing.T) {
	orders := []model.Order{order("o1", 10, 40.71, -74.00)}
	vehicles := []model.Vehicle{vehicle("v1", 100)}
	o := &Orchestrator{Remote: fixedRemote{ids: []string{"nope"}}}

	res := o.Solve(context.Background(), testRequest(orders, vehicles, ""))

	if res.AlgorithmUsed != model.AlgorithmGenetic {
		t.Fatalf("unknown IDs from the remote should not be trusted, got %s", res.AlgorithmUsed)
	}
}

func TestBetterPlanPrefersCoverage(t *testing.T) {
	a := Plan{TotalKm: 100}
	b := Plan{TotalKm: 5, Unassigned: []string{"o1"}}
	if !betterPlan(a, b) {
		t.Fatalf("full coverage should beat shorter distance")
	}
	c := Plan{TotalKm: 40}
	d := Plan{TotalKm: 50}
	if !betterPlan(c, d) {
		t.Fatalf("equal coverage should fall back to distance")
	}
}

func TestMetricsComparedToBaseline(t *testing.T) {
	orders := []model.Order{
		order("o1", 5, 40.76, -74.00),
		order("o2", 5, 40.705, -74.00),
		order("o3", 5, 40.73, -74.00),
	}
	vehicles := []model.Vehicle{vehicle("v1", 100), vehicle("v2", 100)}
	o := &Orchestrator{}

	res := o.Solve(context.Background(), testRequest(orders, vehicles, model.AlgorithmGenetic))

	if res.Metrics.VehicleUtilization <= 0 || res.Metrics.VehicleUtilization > 1 {
		t.Fatalf("utilization out of range: %v", res.Metrics.VehicleUtilization)
	}
	if res.Metrics.OnTimeProbability < 0.5 || res.Metrics.OnTimeProbability > 0.98 {
		t.Fatalf("on-time probability out of range: %v", res.Metrics.OnTimeProbability)
	}
	if res.Metrics.DistanceReductionPercent < 0 {
		t.Fatalf("optimized plan should not be longer than the input-order baseline, got %v%%", res.Metrics.DistanceReductionPercent)
	}
	if res.OptimizationID == "" || res.ComputationTimeMs < 0 {
		t.Fatalf("result not normalized: %+v", res)
	}
}
