package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// EarthRadiusKm is the mean Earth radius used for great-circle distances
const EarthRadiusKm = 6371.0

// CoordinatePrecision is the number of decimal places stored for GPS coordinates
const CoordinatePrecision = 7

// Point represents a geographic point
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point lies within WGS84 bounds
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// String renders the point in the "lat, lng" form used for tracking locations
func (p Point) String() string {
	return FormatLatLng(p.Latitude, p.Longitude)
}

// HaversineKm calculates the distance between two GPS coordinates in kilometers
func HaversineKm(a, b Point) float64 {
	lat1Rad := a.Latitude * math.Pi / 180
	lat2Rad := b.Latitude * math.Pi / 180
	deltaLat := (b.Latitude - a.Latitude) * math.Pi / 180
	deltaLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	// Rounding can push h just past 1 for antipodal points
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusKm * c
}

// Round rounds v half away from zero to the given number of decimal places.
// NaN and infinities are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// Coordinate converts a float coordinate to the fixed-precision decimal stored for GPS samples
func Coordinate(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(CoordinatePrecision)
}

// FormatLatLng renders a coordinate pair as "lat, lng" with at most 7 decimals
func FormatLatLng(lat, lng float64) string {
	return Coordinate(lat).String() + ", " + Coordinate(lng).String()
}

// ParseLatLng parses a "lat, lng" or "lat,lng" string
func ParseLatLng(s string) (Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Point{}, fmt.Errorf("invalid coordinate pair %q", s)
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid latitude in %q: %w", s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return Point{}, fmt.Errorf("invalid longitude in %q: %w", s, err)
	}

	p := Point{Latitude: lat, Longitude: lng}
	if !p.Valid() {
		return Point{}, fmt.Errorf("coordinate pair %q out of range", s)
	}
	return p, nil
}
