package opt

import (
	"context"

	"fleetopt/internal/geo"
)

// ppoMinPerKm is the pace assumed by the policy builder when no provider
// matrix is available. Deliberately pessimistic next to the matrix estimate.
const ppoMinPerKm = 2.0

// RouteBuilder constructs routes one stop at a time by asking a Policy for
// the next order. The policy may be learned or heuristic; the builder does
// not care which.
type RouteBuilder struct {
	policy Policy
}

// NewRouteBuilder wires a policy, defaulting to the heuristic one.
func NewRouteBuilder(p Policy) *RouteBuilder {
	if p == nil {
		p = HeuristicPolicy{}
	}
	return &RouteBuilder{policy: p}
}

// leg mirrors Instance.Leg but with the builder's own no-matrix pace.
func (b *RouteBuilder) leg(in *Instance, from, to int) (float64, float64) {
	if in.Matrix != nil && in.Matrix.N == len(in.Points()) {
		return in.Matrix.Leg(from, to)
	}
	d := geo.HaversineKm(in.Points()[from], in.Points()[to])
	return d, d * ppoMinPerKm * in.Traffic.Lookup(in.Points()[to])
}

// Solve fills vehicles in declaration order. Each vehicle's route grows by
// policy selection until no candidate fits; a candidate that cannot fit the
// remaining capacity or time budget is dropped from that route permanently,
// so each route finishes in at most one pass over the pool.
func (b *RouteBuilder) Solve(ctx context.Context, in *Instance) Plan {
	pool := make(map[int]bool, len(in.Orders))
	for i := range in.Orders {
		pool[i] = true
	}
	seqs := make([][]int, len(in.Vehicles))
	for vi := range in.Vehicles {
		if ctx.Err() != nil {
			break
		}
		seqs[vi] = b.buildRoute(ctx, in, vi, pool)
	}
	var unassigned []int
	for i := range in.Orders {
		if pool[i] {
			unassigned = append(unassigned, i)
		}
	}
	return buildPlanWith(in, func(i, j int) (float64, float64) { return b.leg(in, i, j) }, seqs, unassigned)
}

func (b *RouteBuilder) buildRoute(ctx context.Context, in *Instance, vi int, pool map[int]bool) []int {
	v := in.Vehicles[vi]
	budget := in.Cons.MaxRouteDurationMin()
	if v.AvailableHours > 0 && v.AvailableHours*60 < budget {
		budget = v.AvailableHours * 60
	}
	at := in.vehiclePoint(vi)
	now := in.DepartAt
	elapsed := 0.0
	distKm := 0.0
	loadKg := 0.0
	excluded := map[int]bool{}
	var seq []int

	byID := make(map[string]int, len(in.Orders))
	for i, o := range in.Orders {
		byID[o.ID] = i
	}

	for iter := 0; iter < len(in.Orders); iter++ {
		if ctx.Err() != nil {
			break
		}
		if len(seq) >= in.Cons.MaxStopsPerVehicle {
			break
		}
		state := StepState{
			Location:    in.Points()[at],
			Now:         now,
			ElapsedMin:  elapsed,
			RemainingKg: v.CapacityKg - loadKg,
		}
		var cands []Candidate
		for oi := range pool {
			if !pool[oi] || excluded[oi] {
				continue
			}
			o := in.Orders[oi]
			d, t := b.leg(in, at, in.orderPoint(oi))
			if v.CapacityKg > 0 && loadKg+o.WeightKg() > v.CapacityKg {
				excluded[oi] = true
				continue
			}
			if v.MaxDistanceKm > 0 && distKm+d > v.MaxDistanceKm {
				excluded[oi] = true
				continue
			}
			if elapsed+t+o.ServiceMin() > budget {
				excluded[oi] = true
				continue
			}
			cands = append(cands, Candidate{
				OrderID:        o.ID,
				DistanceKm:     d,
				TravelMin:      t,
				BearingDeg:     geo.BearingDeg(in.Points()[at], o.Address),
				SlackMin:       o.TimeWindow.SlackMin(now.Add(minutes(t))),
				PriorityWeight: o.Priority.Weight(),
				TrafficMult:    in.Traffic.Lookup(o.Address),
			})
		}
		if len(cands) == 0 {
			break
		}
		chosenID := b.policy.SelectNext(state, cands)
		oi, ok := byID[chosenID]
		if !ok || !pool[oi] || excluded[oi] {
			break
		}
		o := in.Orders[oi]
		d, t := b.leg(in, at, in.orderPoint(oi))
		arrival := now.Add(minutes(t))
		if !o.TimeWindow.Start.IsZero() && arrival.Before(o.TimeWindow.Start) {
			arrival = o.TimeWindow.Start
		}
		now = arrival.Add(minutes(o.ServiceMin()))
		elapsed = now.Sub(in.DepartAt).Minutes()
		distKm += d
		loadKg += o.WeightKg()
		at = in.orderPoint(oi)
		seq = append(seq, oi)
		delete(pool, oi)
	}
	return seq
}
