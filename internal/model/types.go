// Package model defines the shared vocabulary of the optimization service:
// orders, vehicles, constraints and the normalized result shape. Types here
// carry no behavior beyond small derived accessors; solvers treat them as
// immutable inputs.
package model

import "time"

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// IsZero reports whether the point carries no usable coordinates.
func (p GeoPoint) IsZero() bool { return p.Lat == 0 && p.Lng == 0 }

// Priority of a delivery order. Unknown values weigh like "medium".
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Weight converts a priority into the scalar used by fitness and policy
// scoring. Urgent orders dominate but never override hard constraints.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityLow:
		return 1
	case PriorityHigh:
		return 4
	case PriorityUrgent:
		return 8
	default:
		return 2
	}
}

// LineItem is a product reference with its shipping weight.
type LineItem struct {
	ProductID string  `json:"product_id"`
	WeightKg  float64 `json:"weight_kg"`
}

// TimeWindow bounds the acceptable delivery interval for an order.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SlackMin returns the minutes between t and the window end; negative means
// the window is already missed at t.
func (w TimeWindow) SlackMin(t time.Time) float64 {
	if w.End.IsZero() {
		return 0
	}
	return w.End.Sub(t).Minutes()
}

// Order is a delivery request. Immutable once submitted to a solve.
type Order struct {
	ID                  string     `json:"id"`
	CustomerID          string     `json:"customer_id,omitempty"`
	Address             GeoPoint   `json:"address"`
	Items               []LineItem `json:"items,omitempty"`
	TimeWindow          TimeWindow `json:"time_window"`
	Priority            Priority   `json:"priority,omitempty"`
	ServiceTimeMin      float64    `json:"service_time_min,omitempty"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`
}

// DefaultServiceTimeMin is the dwell time assumed at a stop when the order
// does not specify one.
const DefaultServiceTimeMin = 15.0

// WeightKg sums the weight of all line items.
func (o Order) WeightKg() float64 {
	total := 0.0
	for _, it := range o.Items {
		total += it.WeightKg
	}
	return total
}

// ServiceMin returns the per-stop dwell time, defaulted when unset.
func (o Order) ServiceMin() float64 {
	if o.ServiceTimeMin > 0 {
		return o.ServiceTimeMin
	}
	return DefaultServiceTimeMin
}

// VehicleType classifies fleet vehicles.
type VehicleType string

const (
	VehicleVan        VehicleType = "van"
	VehicleTruck      VehicleType = "truck"
	VehicleMotorcycle VehicleType = "motorcycle"
)

// Vehicle is a capacity- and time-limited resource for one optimization run.
// Solvers only read it.
type Vehicle struct {
	ID              string      `json:"id"`
	Type            VehicleType `json:"type,omitempty"`
	CapacityKg      float64     `json:"capacity_kg"`
	MaxDistanceKm   float64     `json:"max_distance_km,omitempty"`
	DriverID        string      `json:"driver_id,omitempty"`
	CurrentLocation GeoPoint    `json:"current_location"`
	AvailableHours  float64     `json:"available_hours,omitempty"`
	CostPerKm       float64     `json:"cost_per_km,omitempty"`
}

// Constraints are run-level limits shared by all vehicles.
type Constraints struct {
	MaxRouteDurationHours  float64 `json:"max_route_duration_hours,omitempty"`
	MaxStopsPerVehicle     int     `json:"max_stops_per_vehicle,omitempty"`
	DriverBreakDurationMin float64 `json:"driver_break_duration_min,omitempty"`
	FuelCostPerKm          float64 `json:"fuel_cost_per_km,omitempty"`
	TrafficFactor          float64 `json:"traffic_factor,omitempty"`
}

// DefaultConstraints fills in values for fields the caller left unset.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxRouteDurationHours:  8,
		MaxStopsPerVehicle:     25,
		DriverBreakDurationMin: 30,
		FuelCostPerKm:          0.65,
		TrafficFactor:          1.0,
	}
}

// Normalize overlays defaults onto zero-valued fields and clamps the traffic
// factor to its >=1.0 contract.
func (c Constraints) Normalize() Constraints {
	d := DefaultConstraints()
	if c.MaxRouteDurationHours <= 0 {
		c.MaxRouteDurationHours = d.MaxRouteDurationHours
	}
	if c.MaxStopsPerVehicle <= 0 {
		c.MaxStopsPerVehicle = d.MaxStopsPerVehicle
	}
	if c.DriverBreakDurationMin <= 0 {
		c.DriverBreakDurationMin = d.DriverBreakDurationMin
	}
	if c.FuelCostPerKm <= 0 {
		c.FuelCostPerKm = d.FuelCostPerKm
	}
	if c.TrafficFactor < 1.0 {
		c.TrafficFactor = d.TrafficFactor
	}
	return c
}

// MaxRouteDurationMin is the route duration budget in minutes.
func (c Constraints) MaxRouteDurationMin() float64 { return c.MaxRouteDurationHours * 60 }

// Stop is one visit within a route. Produced by a solver's decode step,
// never hand-edited.
type Stop struct {
	OrderID               string    `json:"order_id"`
	Sequence              int       `json:"sequence"`
	EstimatedArrival      time.Time `json:"estimated_arrival"`
	EstimatedDeparture    time.Time `json:"estimated_departure"`
	TravelTimeFromPrevMin float64   `json:"travel_time_from_previous_min"`
	DistanceFromPrevKm    float64   `json:"distance_from_previous_km"`
}

// Route is the visiting sequence assigned to one vehicle.
type Route struct {
	VehicleID        string  `json:"vehicle_id"`
	DriverID         string  `json:"driver_id,omitempty"`
	Stops            []Stop  `json:"stops"`
	TotalDistanceKm  float64 `json:"total_distance_km"`
	TotalDurationMin float64 `json:"total_duration_min"`
	FuelCost         float64 `json:"fuel_cost"`
	EfficiencyScore  float64 `json:"efficiency_score"`
}

// Algorithm identifies which solver produced a result.
type Algorithm string

const (
	AlgorithmGenetic  Algorithm = "genetic_algorithm"
	AlgorithmPPO      Algorithm = "ppo"
	AlgorithmHybrid   Algorithm = "hybrid"
	AlgorithmFallback Algorithm = "fallback"
	AlgorithmAuto     Algorithm = "auto"
)

// TrafficModel selects which traffic picture a solve assumes.
type TrafficModel string

const (
	TrafficCurrent    TrafficModel = "current"
	TrafficHistorical TrafficModel = "historical"
	TrafficPredictive TrafficModel = "predictive"
)

// BaseTrafficMultiplier maps the requested traffic model onto a base
// multiplier applied on top of Constraints.TrafficFactor.
func (m TrafficModel) BaseTrafficMultiplier() float64 {
	switch m {
	case TrafficHistorical:
		return 1.1
	case TrafficPredictive:
		return 1.2
	default:
		return 1.0
	}
}

// OptimizationMetrics compares the winning plan against the naive
// input-order baseline.
type OptimizationMetrics struct {
	DistanceReductionPercent float64 `json:"distance_reduction_percent"`
	TimeReductionPercent     float64 `json:"time_reduction_percent"`
	CostSavings              float64 `json:"cost_savings"`
	OnTimeProbability        float64 `json:"on_time_probability"`
	VehicleUtilization       float64 `json:"vehicle_utilization"`
}

// OptimizationResult is the normalized output of any solver path.
type OptimizationResult struct {
	OptimizationID     string              `json:"optimization_id"`
	Routes             []Route             `json:"routes"`
	TotalDistanceKm    float64             `json:"total_distance_km"`
	TotalDurationMin   float64             `json:"total_duration_min"`
	TotalFuelCost      float64             `json:"total_fuel_cost"`
	UnassignedOrderIDs []string            `json:"unassigned_order_ids,omitempty"`
	Infeasible         bool                `json:"infeasible,omitempty"`
	Metrics            OptimizationMetrics `json:"optimization_metrics"`
	AlgorithmUsed      Algorithm           `json:"algorithm_used"`
	ComputationTimeMs  int64               `json:"computation_time_ms"`
	CreatedAt          time.Time           `json:"created_at,omitempty"`
}

// GAConfig carries caller overrides for the genetic solver. Zero values mean
// "use the default".
type GAConfig struct {
	PopulationSize int     `json:"population_size,omitempty"`
	Generations    int     `json:"generations,omitempty"`
	CrossoverRate  float64 `json:"crossover_rate,omitempty"`
	MutationRate   float64 `json:"mutation_rate,omitempty"`
	EliteSize      int     `json:"elite_size,omitempty"`
	TournamentSize int     `json:"tournament_size,omitempty"`
	// Early stop is a design addition over the fixed-budget loop; disabled by
	// default so repeated runs with the same seed stay reproducible.
	EarlyStop         bool    `json:"early_stop,omitempty"`
	EarlyStopPatience int     `json:"early_stop_patience,omitempty"`
	EarlyStopEpsilon  float64 `json:"early_stop_epsilon,omitempty"`
	// AllowOverflow keeps over-capacity orders on a route (surfaced via the
	// capacity overflow metric) instead of dropping them to unassigned.
	AllowOverflow bool  `json:"allow_overflow,omitempty"`
	Seed          int64 `json:"seed,omitempty"`
}

// Subscription registers a webhook endpoint for tenant events.
type Subscription struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Secret    string    `json:"secret,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// OptimizeRequest is the boundary shape accepted by POST /v1/optimize.
type OptimizeRequest struct {
	TenantID         string       `json:"tenant_id,omitempty"`
	Orders           []Order      `json:"orders"`
	Vehicles         []Vehicle    `json:"vehicles"`
	TrafficModel     TrafficModel `json:"traffic_model,omitempty"`
	OptimizationType Algorithm    `json:"optimization_type,omitempty"`
	Constraints      *Constraints `json:"constraints,omitempty"`
	GA               *GAConfig    `json:"ga,omitempty"`
	// DepartAt anchors stop timestamps. Defaults to the earliest time-window
	// start across orders so identical inputs schedule identically.
	DepartAt time.Time `json:"depart_at,omitempty"`
}
