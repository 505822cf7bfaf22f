package geofence

import (
	"math"
	"testing"
)

var taipei = Coordinate{Latitude: 25.0330, Longitude: 121.5654}

func TestIsWithinZone_Scenarios(t *testing.T) {
	zone := Zone{Center: taipei, RadiusMeters: 1000}

	tests := []struct {
		name     string
		observed Coordinate
		want     bool
	}{
		{name: "at center", observed: taipei, want: true},
		{name: "about 1113m north", observed: Coordinate{Latitude: 25.0430, Longitude: 121.5654}, want: false},
		{name: "about 556m north", observed: Coordinate{Latitude: 25.0380, Longitude: 121.5654}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsWithinZone(tt.observed, zone); got != tt.want {
				t.Errorf("IsWithinZone(%v) = %v, want %v", tt.observed, got, tt.want)
			}
		})
	}
}

func TestDistance_KnownValues(t *testing.T) {
	if d := Distance(taipei, taipei); d != 0 {
		t.Fatalf("distance to self = %v, want 0", d)
	}

	north := Coordinate{Latitude: 25.0430, Longitude: 121.5654}
	d := Distance(taipei, north)
	// 0.01 deg of latitude on a 6371km sphere
	want := EarthRadiusMeters * 0.01 * math.Pi / 180
	if math.Abs(d-want) > 0.01 {
		t.Fatalf("distance = %v, want about %v", d, want)
	}
	if d < 1100 || d > 1120 {
		t.Fatalf("distance = %v, want roughly 1113m", d)
	}
}

func TestDistance_Symmetric(t *testing.T) {
	points := []Coordinate{
		taipei,
		{Latitude: 25.0478, Longitude: 121.5170},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 0, Longitude: 179.9999},
		{Latitude: 0, Longitude: -179.9999},
	}
	for _, a := range points {
		for _, b := range points {
			ab, ba := Distance(a, b), Distance(b, a)
			if math.Abs(ab-ba) > 1e-6 {
				t.Errorf("Distance(%v,%v)=%v but reverse=%v", a, b, ab, ba)
			}
		}
	}
}

func TestIsWithinZone_InclusiveBoundary(t *testing.T) {
	observed := Coordinate{Latitude: 25.0400, Longitude: 121.5700}
	d := Distance(observed, taipei)

	onEdge := Zone{Center: taipei, RadiusMeters: d}
	if !IsWithinZone(observed, onEdge) {
		t.Fatalf("point at exactly the radius (%v m) should be inside", d)
	}

	slightlyLarger := Zone{Center: taipei, RadiusMeters: d * (1 + 1e-6)}
	if !IsWithinZone(observed, slightlyLarger) {
		t.Fatal("point within relative tolerance should be inside")
	}

	smaller := Zone{Center: taipei, RadiusMeters: d - 1}
	if IsWithinZone(observed, smaller) {
		t.Fatal("point 1m beyond the radius should be outside")
	}
}

func TestIsWithinZone_CenterAlwaysInside(t *testing.T) {
	for _, r := range []float64{0, 0.5, 1, 100, 5000} {
		if !IsWithinZone(taipei, Zone{Center: taipei, RadiusMeters: r}) {
			t.Errorf("center should be inside zone of radius %v", r)
		}
	}
}

func TestIsWithinZone_Deterministic(t *testing.T) {
	zone := Zone{Center: taipei, RadiusMeters: 750}
	p := Coordinate{Latitude: 25.0371, Longitude: 121.5601}
	first := IsWithinZone(p, zone)
	for i := 0; i < 100; i++ {
		if IsWithinZone(p, zone) != first {
			t.Fatal("IsWithinZone must be deterministic")
		}
	}
}

func TestIsWithinZone_FailsClosed(t *testing.T) {
	nan, inf := math.NaN(), math.Inf(1)
	valid := Zone{Center: taipei, RadiusMeters: 1000}

	tests := []struct {
		name     string
		observed Coordinate
		zone     Zone
	}{
		{"nan latitude", Coordinate{Latitude: nan, Longitude: 121.5}, valid},
		{"inf longitude", Coordinate{Latitude: 25, Longitude: inf}, valid},
		{"latitude out of range", Coordinate{Latitude: 91, Longitude: 121.5}, valid},
		{"longitude out of range", Coordinate{Latitude: 25, Longitude: -181}, valid},
		{"nan radius", taipei, Zone{Center: taipei, RadiusMeters: nan}},
		{"infinite radius", taipei, Zone{Center: taipei, RadiusMeters: inf}},
		{"negative radius", taipei, Zone{Center: taipei, RadiusMeters: -1}},
		{"nan center", taipei, Zone{Center: Coordinate{Latitude: nan}, RadiusMeters: 10}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Check(tt.observed, tt.zone)
			if res.Within {
				t.Fatalf("Check(%v, %v) = inside, want fail closed", tt.observed, tt.zone)
			}
			if !math.IsNaN(res.DistanceMeters) {
				t.Fatalf("distance = %v, want NaN", res.DistanceMeters)
			}
		})
	}
}

func TestNewZone(t *testing.T) {
	if _, err := NewZone(taipei, 500); err != nil {
		t.Fatalf("NewZone valid: %v", err)
	}
	for _, r := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if _, err := NewZone(taipei, r); err != ErrInvalidZone {
			t.Errorf("NewZone(radius=%v) err = %v, want ErrInvalidZone", r, err)
		}
	}
	if _, err := NewZone(Coordinate{Latitude: 100}, 500); err != ErrInvalidZone {
		t.Errorf("NewZone(bad center) err = %v, want ErrInvalidZone", err)
	}
}
