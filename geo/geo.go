package geo

import (
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used for haversine distances.
const EarthRadiusMeters = 6371000.0

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c is finite and inside the WGS84 ranges.
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// DistanceMeters returns the great-circle distance between a and b.
// It returns +Inf if either coordinate is invalid.
func DistanceMeters(a, b Coordinate) float64 {
	if !a.Valid() || !b.Valid() {
		return math.Inf(1)
	}
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	la1 := a.Lat * math.Pi / 180
	la2 := b.Lat * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(la1)*math.Cos(la2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// rounding can push h marginally past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusMeters * c
}

// PathLengthMeters sums the leg distances of an ordered path.
func PathLengthMeters(path []Coordinate) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += DistanceMeters(path[i-1], path[i])
	}
	return total
}
