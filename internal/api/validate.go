package api

import (
	"errors"
	"fmt"

	"fleetopt/internal/model"
)

// validateOptimizeRequest enforces the boundary contract: empty collections
// reject the whole request, while individually malformed orders are dropped
// and reported so the rest of the batch still solves. The returned slice
// lists the dropped order IDs.
func validateOptimizeRequest(req *model.OptimizeRequest) ([]string, error) {
	if len(req.Orders) == 0 {
		return nil, errors.New("orders must not be empty")
	}
	if len(req.Vehicles) == 0 {
		return nil, errors.New("vehicles must not be empty")
	}
	for i, v := range req.Vehicles {
		if v.ID == "" {
			return nil, fmt.Errorf("vehicle %d is missing an id", i)
		}
		if v.CapacityKg <= 0 {
			return nil, fmt.Errorf("vehicle %q has no capacity", v.ID)
		}
	}
	seen := map[string]bool{}
	kept := req.Orders[:0]
	var rejected []string
	for i, o := range req.Orders {
		switch {
		case o.ID == "":
			rejected = append(rejected, fmt.Sprintf("orders[%d]", i))
		case seen[o.ID]:
			rejected = append(rejected, o.ID)
		case o.Address.IsZero():
			rejected = append(rejected, o.ID)
		default:
			seen[o.ID] = true
			kept = append(kept, o)
		}
	}
	req.Orders = kept
	if len(req.Orders) == 0 {
		return rejected, errors.New("no valid orders after validation")
	}
	return rejected, nil
}
