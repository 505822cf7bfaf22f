// Package geofence decides whether an observed coordinate lies inside a
// community's circular check-in zone.
package geofence

import (
	"errors"
	"math"
)

// EarthRadiusMeters is the mean earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

var ErrInvalidZone = errors.New("geofence: zone requires a valid center and a positive radius")

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid: 有限値かつ緯度 [-90,90] / 経度 [-180,180]
func (c Coordinate) Valid() bool {
	if !finite(c.Latitude) || !finite(c.Longitude) {
		return false
	}
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Zone is a circular boundary around a registered reference point.
// RadiusMeters has no default; whoever builds a Zone decides it.
type Zone struct {
	Center       Coordinate `json:"center"`
	RadiusMeters float64    `json:"radius_meters"`
}

func NewZone(center Coordinate, radiusMeters float64) (Zone, error) {
	if !center.Valid() || !finite(radiusMeters) || radiusMeters <= 0 {
		return Zone{}, ErrInvalidZone
	}
	return Zone{Center: center, RadiusMeters: radiusMeters}, nil
}

// Result carries the membership decision together with the measured distance.
type Result struct {
	DistanceMeters float64
	Within         bool
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b Coordinate) float64 {
	phi1 := radians(a.Latitude)
	phi2 := radians(b.Latitude)
	dPhi := radians(b.Latitude - a.Latitude)
	dLambda := radians(b.Longitude - a.Longitude)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)
	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// Check measures observed against zone. Malformed input fails closed:
// Within is false and DistanceMeters is NaN.
func Check(observed Coordinate, zone Zone) Result {
	if !observed.Valid() || !zone.Center.Valid() || !finite(zone.RadiusMeters) || zone.RadiusMeters < 0 {
		return Result{DistanceMeters: math.NaN(), Within: false}
	}
	d := Distance(observed, zone.Center)
	if !finite(d) {
		return Result{DistanceMeters: math.NaN(), Within: false}
	}
	// 境界上（d == radius）は範囲内
	return Result{DistanceMeters: d, Within: d <= zone.RadiusMeters}
}

// IsWithinZone reports whether observed is inside zone, boundary inclusive.
func IsWithinZone(observed Coordinate, zone Zone) bool {
	return Check(observed, zone).Within
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
