package geo

import (
	"testing"

	"fleetopt/internal/model"
)

func TestHaversineKnownDistance(t *testing.T) {
	// JFK to LAX is about 3983 km
	jfk := model.GeoPoint{Lat: 40.6413, Lng: -73.7781}
	lax := model.GeoPoint{Lat: 33.9416, Lng: -118.4085}
	d := HaversineKm(jfk, lax)
	if d < 3900 || d > 4050 {
		t.Fatalf("JFK-LAX = %v km, expected ~3983", d)
	}
	if HaversineKm(jfk, jfk) != 0 {
		t.Fatalf("distance to self must be zero")
	}
	if HaversineKm(jfk, lax) != HaversineKm(lax, jfk) {
		t.Fatalf("haversine must be symmetric")
	}
}

func TestBearingRange(t *testing.T) {
	a := model.GeoPoint{Lat: 40.70, Lng: -74.00}
	north := model.GeoPoint{Lat: 41.00, Lng: -74.00}
	b := BearingDeg(a, north)
	if b > 1 && b < 359 {
		t.Fatalf("due north bearing = %v, want ~0", b)
	}
	east := model.GeoPoint{Lat: 40.70, Lng: -73.00}
	if b := BearingDeg(a, east); b < 85 || b > 95 {
		t.Fatalf("due east bearing = %v, want ~90", b)
	}
}

func TestTrafficLookup(t *testing.T) {
	p := model.GeoPoint{Lat: 40.7128, Lng: -74.0060}
	tm := TrafficMap{Base: 1.2, Cells: map[string]float64{BucketKey(p): 1.8}}

	if got := tm.Lookup(p); got != 1.8 {
		t.Fatalf("cell override = %v, want 1.8", got)
	}
	elsewhere := model.GeoPoint{Lat: 41.50, Lng: -74.50}
	if got := tm.Lookup(elsewhere); got != 1.2 {
		t.Fatalf("base multiplier = %v, want 1.2", got)
	}
	if got := UniformTraffic(0.3).Lookup(p); got != 1.0 {
		t.Fatalf("multiplier must clamp to >= 1.0, got %v", got)
	}
}

func TestBucketKeyStability(t *testing.T) {
	a := model.GeoPoint{Lat: 40.7121, Lng: -74.0055}
	b := model.GeoPoint{Lat: 40.7129, Lng: -74.0051}
	if BucketKey(a) != BucketKey(b) {
		t.Fatalf("points in the same cell got different keys: %s vs %s", BucketKey(a), BucketKey(b))
	}
	far := model.GeoPoint{Lat: 40.7528, Lng: -74.0055}
	if BucketKey(a) == BucketKey(far) {
		t.Fatalf("distant points share a key")
	}
}
