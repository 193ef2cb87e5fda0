package opt

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetopt/internal/geo"
	"fleetopt/internal/matrix"
	"fleetopt/internal/model"
)

// RemoteOptimizer is the external ML routing service. It returns the order
// IDs in optimized visiting sequence; the orchestrator decodes that
// permutation locally so constraints are still enforced here.
type RemoteOptimizer interface {
	OptimizeOrder(ctx context.Context, orders []model.Order) ([]string, error)
}

// Orchestrator arbitrates between solvers per the requested mode. Every
// dependency is optional; a zero Orchestrator still solves with the local
// algorithms.
type Orchestrator struct {
	Matrix matrix.Provider
	Remote RemoteOptimizer
	Policy Policy
	Log    *log.Logger

	SolverBudget  time.Duration // per-solver cap in hybrid and auto modes
	MatrixTimeout time.Duration

	// OnMatrixFallback and OnSolverTimeout are observability hooks; nil is fine.
	OnMatrixFallback func()
	OnSolverTimeout  func(algorithm string)
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.Log != nil {
		o.Log.Printf(format, args...)
	}
}

func (o *Orchestrator) solverBudget() time.Duration {
	if o.SolverBudget > 0 {
		return o.SolverBudget
	}
	return 20 * time.Second
}

// Solve dispatches the request to the selected solver path and normalizes
// the winner into an OptimizationResult. For well-formed non-empty inputs it
// never fails: every path ends in a plan, worst case nearest-neighbor.
func (o *Orchestrator) Solve(ctx context.Context, req model.OptimizeRequest) *model.OptimizationResult {
	started := time.Now()
	cons := model.DefaultConstraints()
	if req.Constraints != nil {
		cons = req.Constraints.Normalize()
	}
	traffic := geo.UniformTraffic(cons.TrafficFactor * req.TrafficModel.BaseTrafficMultiplier())
	in := NewInstance(req.Orders, req.Vehicles, cons, o.fetchMatrix(ctx, req), traffic, req.DepartAt)
	ga := gaParams(req.GA)

	var plan Plan
	var gaStats GAStats
	algo := req.OptimizationType
	switch req.OptimizationType {
	case model.AlgorithmGenetic:
		plan, gaStats = SolveGenetic(ctx, in, ga)
	case model.AlgorithmPPO:
		plan = NewRouteBuilder(o.Policy).Solve(ctx, in)
	case model.AlgorithmHybrid:
		plan = o.race(ctx, in, ga)
	default:
		plan, algo = o.auto(ctx, in, ga)
	}

	res := o.buildResult(in, plan, algo)
	res.ComputationTimeMs = time.Since(started).Milliseconds()
	RecordStats(req.TenantID, string(algo), SolveStats{
		Algorithm:    string(algo),
		Orders:       len(req.Orders),
		Vehicles:     len(req.Vehicles),
		Unassigned:   len(plan.Unassigned),
		TotalKm:      round1(plan.TotalKm),
		Fitness:      round2(plan.Fitness()),
		Generations:  gaStats.Generations,
		StoppedEarly: gaStats.StoppedEarly,
		DurationMs:   res.ComputationTimeMs,
		At:           time.Now().UTC(),
	})
	return res
}

// fetchMatrix awaits the provider once, with its own timeout. Failure is a
// warning, not an error: solvers fall back to haversine estimates.
func (o *Orchestrator) fetchMatrix(ctx context.Context, req model.OptimizeRequest) *matrix.Matrix {
	if o.Matrix == nil {
		return nil
	}
	timeout := o.MatrixTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	points := make([]model.GeoPoint, 0, len(req.Vehicles)+len(req.Orders))
	for _, v := range req.Vehicles {
		points = append(points, v.CurrentLocation)
	}
	for _, ord := range req.Orders {
		points = append(points, ord.Address)
	}
	m, err := o.Matrix.GetMatrix(mctx, points)
	if err != nil {
		o.logf("matrix provider unavailable, using estimates: %v", err)
		if o.OnMatrixFallback != nil {
			o.OnMatrixFallback()
		}
		return nil
	}
	return m
}

// race runs both local solvers concurrently against the same instance. Each
// gets its own time budget; whichever assigns more orders wins, distance
// breaking the tie.
func (o *Orchestrator) race(ctx context.Context, in *Instance, ga GAParams) Plan {
	var wg sync.WaitGroup
	var gaPlan, ppoPlan Plan
	wg.Add(2)
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, o.solverBudget())
		defer cancel()
		gaPlan = o.runGenetic(sctx, in, ga)
	}()
	go func() {
		defer wg.Done()
		sctx, cancel := context.WithTimeout(ctx, o.solverBudget())
		defer cancel()
		ppoPlan = NewRouteBuilder(o.Policy).Solve(sctx, in)
	}()
	wg.Wait()
	if betterPlan(gaPlan, ppoPlan) {
		return gaPlan
	}
	return ppoPlan
}

// betterPlan prefers a's coverage, then its distance.
func betterPlan(a, b Plan) bool {
	if len(a.Unassigned) != len(b.Unassigned) {
		return len(a.Unassigned) < len(b.Unassigned)
	}
	return a.TotalKm <= b.TotalKm
}

// auto is the never-fail chain: remote ML service, then the genetic solver,
// then nearest-neighbor. The result is tagged with whichever link answered.
func (o *Orchestrator) auto(ctx context.Context, in *Instance, ga GAParams) (Plan, model.Algorithm) {
	if o.Remote != nil {
		sctx, cancel := context.WithTimeout(ctx, o.solverBudget())
		ids, err := o.Remote.OptimizeOrder(sctx, in.Orders)
		cancel()
		if err == nil {
			if perm, ok := permFromIDs(in.Orders, ids); ok {
				return Decode(in, perm, ga.AllowOverflow), model.AlgorithmPPO
			}
			o.logf("ml service returned an incomplete ordering, falling back")
		} else {
			o.logf("ml service unavailable, falling back: %v", err)
		}
	}
	sctx, cancel := context.WithTimeout(ctx, o.solverBudget())
	plan := o.runGenetic(sctx, in, ga)
	timedOut := sctx.Err() != nil
	cancel()
	if len(plan.Routes) > 0 || len(in.Orders) == 0 {
		if !timedOut {
			return plan, model.AlgorithmGenetic
		}
		if o.OnSolverTimeout != nil {
			o.OnSolverTimeout(string(model.AlgorithmGenetic))
		}
	}
	return NearestNeighbor(in), model.AlgorithmFallback
}

// runGenetic isolates solver panics; a crashed solver reads as an empty plan
// so the caller's fallback chain takes over.
func (o *Orchestrator) runGenetic(ctx context.Context, in *Instance, ga GAParams) (plan Plan) {
	defer func() {
		if r := recover(); r != nil {
			o.logf("genetic solver panicked: %v", r)
			plan = Plan{}
		}
	}()
	plan, _ = SolveGenetic(ctx, in, ga)
	return plan
}

// permFromIDs maps an ID sequence back to order indices. Orders the remote
// service dropped are appended in input order so nothing is silently lost.
func permFromIDs(orders []model.Order, ids []string) ([]int, bool) {
	byID := make(map[string]int, len(orders))
	for i, ord := range orders {
		byID[ord.ID] = i
	}
	perm := make([]int, 0, len(orders))
	seen := make(map[int]bool, len(orders))
	for _, id := range ids {
		i, ok := byID[id]
		if !ok || seen[i] {
			return nil, false
		}
		perm = append(perm, i)
		seen[i] = true
	}
	if len(perm) == 0 && len(orders) > 0 {
		return nil, false
	}
	for i := range orders {
		if !seen[i] {
			perm = append(perm, i)
		}
	}
	return perm, true
}

func gaParams(c *model.GAConfig) GAParams {
	if c == nil {
		return GAParams{}
	}
	return GAParams{
		PopulationSize: c.PopulationSize,
		Generations:    c.Generations,
		CrossoverRate:  c.CrossoverRate,
		MutationRate:   c.MutationRate,
		EliteSize:      c.EliteSize,
		TournamentSize: c.TournamentSize,
		EarlyStop:      c.EarlyStop,
		Patience:       c.EarlyStopPatience,
		Epsilon:        c.EarlyStopEpsilon,
		AllowOverflow:  c.AllowOverflow,
		Seed:           c.Seed,
	}
}

// buildResult normalizes the winning plan and scores it against the naive
// input-order baseline.
func (o *Orchestrator) buildResult(in *Instance, plan Plan, algo model.Algorithm) *model.OptimizationResult {
	baselinePerm := make([]int, len(in.Orders))
	for i := range baselinePerm {
		baselinePerm[i] = i
	}
	baseline := Decode(in, baselinePerm, true)

	m := model.OptimizationMetrics{
		OnTimeProbability:  onTimeProbability(len(plan.Routes), plan.TotalMin),
		VehicleUtilization: utilization(len(plan.Routes), len(in.Vehicles)),
	}
	if baseline.TotalKm > 0 {
		m.DistanceReductionPercent = round1((baseline.TotalKm - plan.TotalKm) / baseline.TotalKm * 100)
	}
	if baseline.TotalMin > 0 {
		m.TimeReductionPercent = round1((baseline.TotalMin - plan.TotalMin) / baseline.TotalMin * 100)
	}
	m.CostSavings = round2(baseline.FuelCost - plan.FuelCost)

	return &model.OptimizationResult{
		OptimizationID:     uuid.NewString(),
		Routes:             plan.Routes,
		TotalDistanceKm:    round1(plan.TotalKm),
		TotalDurationMin:   round1(plan.TotalMin),
		TotalFuelCost:      round2(plan.FuelCost),
		UnassignedOrderIDs: plan.Unassigned,
		Infeasible:         plan.Infeasible,
		Metrics:            m,
		AlgorithmUsed:      algo,
		CreatedAt:          time.Now().UTC(),
	}
}

// onTimeProbability decays with plan size; clamped to [0.5, 0.98].
func onTimeProbability(routes int, totalMin float64) float64 {
	p := 0.98 - 0.02*float64(routes) - 0.0004*totalMin
	if p < 0.5 {
		p = 0.5
	}
	if p > 0.98 {
		p = 0.98
	}
	return round2(p)
}

func utilization(withStops, available int) float64 {
	if available == 0 {
		return 0
	}
	return round2(float64(withStops) / float64(available))
}
