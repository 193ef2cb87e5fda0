package opt

import "sort"

// NearestNeighbor is the last-resort solver: fill each vehicle with its
// nearest feasible remaining order, repeatedly. No randomness, no lookahead,
// ties broken by order ID, so identical inputs always produce identical
// routes.
func NearestNeighbor(in *Instance) Plan {
	remaining := make([]int, len(in.Orders))
	for i := range remaining {
		remaining[i] = i
	}
	seqs := make([][]int, len(in.Vehicles))
	for vi := range in.Vehicles {
		vs := &vehicleState{idx: vi, atPoint: in.vehiclePoint(vi)}
		for {
			best := -1
			bestKm := 0.0
			for _, oi := range remaining {
				if oi < 0 || !vs.fits(in, oi) {
					continue
				}
				d, _ := in.Leg(vs.atPoint, in.orderPoint(oi))
				if best == -1 || d < bestKm || (d == bestKm && in.Orders[oi].ID < in.Orders[best].ID) {
					best = oi
					bestKm = d
				}
			}
			if best == -1 {
				break
			}
			vs.push(in, best)
			for i, oi := range remaining {
				if oi == best {
					remaining[i] = -1
					break
				}
			}
		}
		seqs[vi] = vs.sequence
	}
	var unassigned []int
	for _, oi := range remaining {
		if oi >= 0 {
			unassigned = append(unassigned, oi)
		}
	}
	sort.Ints(unassigned)
	return BuildPlan(in, seqs, unassigned)
}
