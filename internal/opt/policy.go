package opt

import (
	"time"

	"fleetopt/internal/model"
)

// StepState is what the selection policy sees at each construction step.
type StepState struct {
	Location    model.GeoPoint
	Now         time.Time
	ElapsedMin  float64
	RemainingKg float64
}

// Candidate is one still-selectable order, with its features precomputed
// relative to the current state.
type Candidate struct {
	OrderID        string
	DistanceKm     float64
	TravelMin      float64
	BearingDeg     float64
	SlackMin       float64 // window end minus projected arrival; negative is late
	PriorityWeight float64
	TrafficMult    float64
}

// Policy chooses the next stop. Implementations must be deterministic for a
// given state and candidate set, or route construction is untestable.
type Policy interface {
	SelectNext(state StepState, cands []Candidate) string
}

// HeuristicPolicy is the shipped default: among window-feasible candidates it
// takes the one with the highest priority weight per traffic-adjusted
// kilometer; if every candidate would be late it limits the damage and takes
// the least-late one. Ties break on order ID.
type HeuristicPolicy struct{}

func (HeuristicPolicy) SelectNext(_ StepState, cands []Candidate) string {
	if len(cands) == 0 {
		return ""
	}
	bestID := ""
	bestScore := 0.0
	anyFeasible := false
	for _, c := range cands {
		if c.SlackMin < 0 {
			continue
		}
		anyFeasible = true
		score := c.PriorityWeight / (1 + c.DistanceKm*c.TrafficMult)
		if bestID == "" || score > bestScore || (score == bestScore && c.OrderID < bestID) {
			bestID = c.OrderID
			bestScore = score
		}
	}
	if anyFeasible {
		return bestID
	}
	leastLate := cands[0]
	for _, c := range cands[1:] {
		if c.SlackMin > leastLate.SlackMin || (c.SlackMin == leastLate.SlackMin && c.OrderID < leastLate.OrderID) {
			leastLate = c
		}
	}
	return leastLate.OrderID
}
