package utils

import (
	"math"
	"testing"
)

func TestHaversineKmKnownDistance(t *testing.T) {
	// Paris -> London is roughly 343 km.
	d := HaversineKm(48.8566, 2.3522, 51.5074, -0.1278)
	if math.Abs(d-343.5) > 2 {
		t.Fatalf("unexpected distance: %f", d)
	}
}

func TestHaversineKmSymmetricAndZero(t *testing.T) {
	a := HaversineKm(28.61, 77.20, 19.07, 72.87)
	b := HaversineKm(19.07, 72.87, 28.61, 77.20)
	if math.Abs(a-b) > 1e-9 {
		t.Fatalf("expected symmetry, got %f vs %f", a, b)
	}
	if HaversineKm(10, 10, 10, 10) != 0 {
		t.Fatalf("expected zero distance for identical points")
	}
}

func TestTravelMinutes(t *testing.T) {
	if got := TravelMinutes(20); got != 30 {
		t.Fatalf("expected 30 minutes for 20 km, got %f", got)
	}
	if got := TravelMinutes(-1); got != 0 {
		t.Fatalf("expected 0 for negative distance, got %f", got)
	}
}

func TestParseCoordinates(t *testing.T) {
	cases := []struct {
		in       string
		lat, lon float64
		ok       bool
	}{
		{"12.97,77.59", 12.97, 77.59, true},
		{" 12.97 , 77.59 ", 12.97, 77.59, true},
		{"12.97 77.59", 12.97, 77.59, true},
		{"POINT(77.59 12.97)", 12.97, 77.59, true},
		{"91,10", 0, 0, false},
		{"10,181", 0, 0, false},
		{"abc", 0, 0, false},
		{"", 0, 0, false},
		{"1,2,3", 0, 0, false},
	}
	for _, tc := range cases {
		lat, lon, ok := ParseCoordinates(tc.in)
		if ok != tc.ok || lat != tc.lat || lon != tc.lon {
			t.Fatalf("ParseCoordinates(%q) = %f,%f,%v", tc.in, lat, lon, ok)
		}
	}
}

func TestStableIndex(t *testing.T) {
	if StableIndex("abc", 5) != StableIndex("abc", 5) {
		t.Fatalf("expected stable index")
	}
	if StableIndex("abc", 0) != 0 {
		t.Fatalf("expected 0 for empty range")
	}
	for _, k := range []string{"a", "b", "c", "req-42"} {
		if i := StableIndex(k, 3); i < 0 || i >= 3 {
			t.Fatalf("index out of range: %d", i)
		}
	}
}
