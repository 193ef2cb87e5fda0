// Package opt contains the routing solvers: a genetic algorithm over order
// permutations, a policy-driven sequential route builder, a nearest-neighbor
// fallback and the orchestrator that arbitrates between them. Solvers share
// one Instance and one cost model so their results are comparable.
package opt

import (
	"time"

	"fleetopt/internal/geo"
	"fleetopt/internal/matrix"
	"fleetopt/internal/model"
)

// Penalty weights for the minimized fitness. Distance is in km, so a minute
// of lateness has to outweigh a short detour but not a cross-town one.
const (
	penaltyLatePerMin     = 8.0
	penaltyOverflowPerKg  = 25.0
	penaltyOverrunPerMin  = 6.0
	penaltyUnassignedEach = 500.0
)

// Instance is one solve's immutable input set. Point indexing convention:
// vehicle v sits at index v, order o at index len(Vehicles)+o. The matrix,
// when present, is laid out the same way.
type Instance struct {
	Orders   []model.Order
	Vehicles []model.Vehicle
	Cons     model.Constraints
	Matrix   *matrix.Matrix
	Traffic  geo.TrafficMap
	DepartAt time.Time

	points []model.GeoPoint
}

// NewInstance normalizes constraints and anchors DepartAt to the earliest
// time-window start when the caller left it unset, so identical inputs
// schedule identically.
func NewInstance(orders []model.Order, vehicles []model.Vehicle, cons model.Constraints, m *matrix.Matrix, traffic geo.TrafficMap, departAt time.Time) *Instance {
	in := &Instance{
		Orders:   orders,
		Vehicles: vehicles,
		Cons:     cons.Normalize(),
		Matrix:   m,
		Traffic:  traffic,
		DepartAt: departAt,
	}
	if in.DepartAt.IsZero() {
		for _, o := range orders {
			if o.TimeWindow.Start.IsZero() {
				continue
			}
			if in.DepartAt.IsZero() || o.TimeWindow.Start.Before(in.DepartAt) {
				in.DepartAt = o.TimeWindow.Start
			}
		}
		if in.DepartAt.IsZero() {
			in.DepartAt = time.Now().UTC().Truncate(time.Minute)
		}
	}
	if in.Traffic.Base < 1.0 {
		in.Traffic = geo.UniformTraffic(in.Cons.TrafficFactor)
	}
	in.points = make([]model.GeoPoint, 0, len(vehicles)+len(orders))
	for _, v := range vehicles {
		in.points = append(in.points, v.CurrentLocation)
	}
	for _, o := range orders {
		in.points = append(in.points, o.Address)
	}
	return in
}

// Points returns the point list in matrix order.
func (in *Instance) Points() []model.GeoPoint { return in.points }

func (in *Instance) vehiclePoint(v int) int { return v }

func (in *Instance) orderPoint(o int) int { return len(in.Vehicles) + o }

// Leg returns distance (km) and travel time (min) between two point indices.
// With no matrix it estimates from haversine at an assumed average speed,
// scaled by the traffic multiplier at the destination.
func (in *Instance) Leg(i, j int) (float64, float64) {
	if in.Matrix != nil && in.Matrix.N == len(in.points) {
		return in.Matrix.Leg(i, j)
	}
	d := geo.HaversineKm(in.points[i], in.points[j])
	mult := in.Traffic.Lookup(in.points[j])
	return d, d / 40.0 * 60 * mult
}

// Plan is a decoded, scheduled solution with its constraint-violation totals.
// Fitness ranks plans; Routes carry the caller-facing schedule.
type Plan struct {
	Routes     []model.Route
	Unassigned []string

	TotalKm    float64
	TotalMin   float64
	FuelCost   float64
	LateMin    float64
	OverflowKg float64
	OverrunMin float64
	Infeasible bool
}

// Fitness is the minimized scalar: distance plus weighted violations.
func (p Plan) Fitness() float64 {
	return p.TotalKm +
		penaltyLatePerMin*p.LateMin +
		penaltyOverflowPerKg*p.OverflowKg +
		penaltyOverrunPerMin*p.OverrunMin +
		penaltyUnassignedEach*float64(len(p.Unassigned))
}
