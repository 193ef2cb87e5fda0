package geo

import (
	"fmt"

	"fleetopt/internal/model"
)

// trafficCellDeg is the grid resolution for traffic lookups, roughly one
// kilometer of latitude per cell.
const trafficCellDeg = 0.01

// TrafficMap maps grid bucket keys to congestion multipliers (>=1.0).
// A missing bucket means the base multiplier applies.
type TrafficMap struct {
	Base  float64
	Cells map[string]float64
}

// UniformTraffic builds a map with no per-cell overrides.
func UniformTraffic(base float64) TrafficMap {
	if base < 1.0 {
		base = 1.0
	}
	return TrafficMap{Base: base}
}

// BucketKey rounds a coordinate into its traffic grid cell key.
func BucketKey(p model.GeoPoint) string {
	lat := int(p.Lat / trafficCellDeg)
	lng := int(p.Lng / trafficCellDeg)
	return fmt.Sprintf("%d:%d", lat, lng)
}

// Lookup returns the multiplier applying at p.
func (t TrafficMap) Lookup(p model.GeoPoint) float64 {
	if t.Cells != nil {
		if m, ok := t.Cells[BucketKey(p)]; ok && m >= 1.0 {
			return m
		}
	}
	if t.Base < 1.0 {
		return 1.0
	}
	return t.Base
}
