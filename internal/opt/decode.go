package opt

import (
	"math"
	"sort"
	"time"

	"fleetopt/internal/model"
)

// vehicleState accumulates one route while decoding.
type vehicleState struct {
	idx      int
	loadKg   float64
	distKm   float64
	elapsed  float64 // minutes since departure, service included
	atPoint  int
	sequence []int // order indices in visit order
}

// fits reports whether appending order oi keeps the route within capacity,
// stop count, duration and vehicle range.
func (vs *vehicleState) fits(in *Instance, oi int) bool {
	o := in.Orders[oi]
	v := in.Vehicles[vs.idx]
	if v.CapacityKg > 0 && vs.loadKg+o.WeightKg() > v.CapacityKg {
		return false
	}
	if len(vs.sequence) >= in.Cons.MaxStopsPerVehicle {
		return false
	}
	d, t := in.Leg(vs.atPoint, in.orderPoint(oi))
	if v.MaxDistanceKm > 0 && vs.distKm+d > v.MaxDistanceKm {
		return false
	}
	budget := in.Cons.MaxRouteDurationMin()
	if v.AvailableHours > 0 && v.AvailableHours*60 < budget {
		budget = v.AvailableHours * 60
	}
	return vs.elapsed+t+o.ServiceMin() <= budget
}

func (vs *vehicleState) push(in *Instance, oi int) {
	o := in.Orders[oi]
	d, t := in.Leg(vs.atPoint, in.orderPoint(oi))
	vs.loadKg += o.WeightKg()
	vs.distKm += d
	vs.elapsed += t + o.ServiceMin()
	vs.atPoint = in.orderPoint(oi)
	vs.sequence = append(vs.sequence, oi)
}

// Decode turns an order permutation into per-vehicle sequences. It walks the
// permutation keeping one vehicle open at a time: an order that does not fit
// the open vehicle moves the cursor forward to the first later vehicle that
// can take it, closing the ones skipped. Orders no remaining vehicle can take
// become unassigned, or stay on the open vehicle when allowOverflow is set.
func Decode(in *Instance, perm []int, allowOverflow bool) Plan {
	states := make([]*vehicleState, len(in.Vehicles))
	for i := range states {
		states[i] = &vehicleState{idx: i, atPoint: in.vehiclePoint(i)}
	}
	open := 0
	var unassigned []int
	for _, oi := range perm {
		if open >= len(states) {
			unassigned = append(unassigned, oi)
			continue
		}
		if states[open].fits(in, oi) {
			states[open].push(in, oi)
			continue
		}
		placed := false
		for vi := open + 1; vi < len(states); vi++ {
			if states[vi].fits(in, oi) {
				open = vi
				states[open].push(in, oi)
				placed = true
				break
			}
		}
		if placed {
			continue
		}
		if allowOverflow {
			states[open].push(in, oi)
			continue
		}
		unassigned = append(unassigned, oi)
	}
	seqs := make([][]int, len(states))
	for i, vs := range states {
		seqs[i] = vs.sequence
	}
	return BuildPlan(in, seqs, unassigned)
}

// legFunc yields distance (km) and travel time (min) between point indices.
type legFunc func(i, j int) (float64, float64)

// BuildPlan schedules per-vehicle order sequences into routes with
// timestamps, then totals distance, cost and violations. All solvers funnel
// through here so a plan's fitness never depends on which solver produced it.
func BuildPlan(in *Instance, seqs [][]int, unassigned []int) Plan {
	return buildPlanWith(in, in.Leg, seqs, unassigned)
}

func buildPlanWith(in *Instance, leg legFunc, seqs [][]int, unassigned []int) Plan {
	var plan Plan
	budget := in.Cons.MaxRouteDurationMin()
	for vi, seq := range seqs {
		if len(seq) == 0 {
			continue
		}
		v := in.Vehicles[vi]
		r := model.Route{VehicleID: v.ID, DriverID: v.DriverID}
		at := in.vehiclePoint(vi)
		now := in.DepartAt
		elapsed := 0.0
		broke := false
		for si, oi := range seq {
			o := in.Orders[oi]
			d, t := leg(at, in.orderPoint(oi))
			// one planned break once the first half of the shift is spent driving
			if !broke && in.Cons.DriverBreakDurationMin > 0 && elapsed+t > budget/2 {
				now = now.Add(minutes(in.Cons.DriverBreakDurationMin))
				elapsed += in.Cons.DriverBreakDurationMin
				broke = true
			}
			arrival := now.Add(minutes(t))
			elapsed += t
			if !o.TimeWindow.Start.IsZero() && arrival.Before(o.TimeWindow.Start) {
				wait := o.TimeWindow.Start.Sub(arrival).Minutes()
				arrival = o.TimeWindow.Start
				elapsed += wait
			}
			if !o.TimeWindow.End.IsZero() && arrival.After(o.TimeWindow.End) {
				plan.LateMin += arrival.Sub(o.TimeWindow.End).Minutes()
			}
			departure := arrival.Add(minutes(o.ServiceMin()))
			elapsed += o.ServiceMin()
			r.Stops = append(r.Stops, model.Stop{
				OrderID:               o.ID,
				Sequence:              si + 1,
				EstimatedArrival:      arrival,
				EstimatedDeparture:    departure,
				TravelTimeFromPrevMin: round1(t),
				DistanceFromPrevKm:    round1(d),
			})
			r.TotalDistanceKm += d
			now = departure
			at = in.orderPoint(oi)
		}
		r.TotalDurationMin = elapsed
		costPerKm := in.Cons.FuelCostPerKm
		if v.CostPerKm > 0 {
			costPerKm = v.CostPerKm
		}
		r.FuelCost = r.TotalDistanceKm * costPerKm
		r.EfficiencyScore = efficiencyScore(r)
		load := 0.0
		for _, oi := range seq {
			load += in.Orders[oi].WeightKg()
		}
		if v.CapacityKg > 0 && load > v.CapacityKg {
			plan.OverflowKg += load - v.CapacityKg
		}
		if elapsed > budget {
			plan.OverrunMin += elapsed - budget
		}
		r.TotalDistanceKm = round1(r.TotalDistanceKm)
		r.TotalDurationMin = round1(r.TotalDurationMin)
		r.FuelCost = round2(r.FuelCost)
		plan.TotalKm += r.TotalDistanceKm
		plan.TotalMin += r.TotalDurationMin
		plan.FuelCost += r.FuelCost
		plan.Routes = append(plan.Routes, r)
	}
	for _, oi := range unassigned {
		plan.Unassigned = append(plan.Unassigned, in.Orders[oi].ID)
	}
	sort.Strings(plan.Unassigned)
	plan.Infeasible = plan.OverflowKg > 0 || plan.OverrunMin > 0
	return plan
}

// efficiencyScore is a 0..100 heuristic: dense short routes score high, long
// sparse ones decay toward zero.
func efficiencyScore(r model.Route) float64 {
	if len(r.Stops) == 0 {
		return 0
	}
	kmPerStop := r.TotalDistanceKm / float64(len(r.Stops))
	minPerStop := r.TotalDurationMin / float64(len(r.Stops))
	score := 100 - 4*kmPerStop - 0.5*minPerStop
	if score < 0 {
		return 0
	}
	return round1(score)
}

func minutes(m float64) time.Duration { return time.Duration(m * float64(time.Minute)) }

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
