package geo

import (
	"math"

	"github.com/example/transfer-booking/internal/models"
)

const earthRadiusM = 6371000.0

// Bounds is a latitude/longitude rectangle.
type Bounds struct {
	South float64 `json:"south"`
	West  float64 `json:"west"`
	North float64 `json:"north"`
	East  float64 `json:"east"`
}

func (b Bounds) Contains(c models.Coord) bool {
	return c.Lat >= b.South && c.Lat <= b.North && c.Lng >= b.West && c.Lng <= b.East
}

// CircleBounds returns the smallest rectangle enclosing the circle of
// radiusM metres around center.
func CircleBounds(center models.Coord, radiusM float64) Bounds {
	dLat := radiusM / earthRadiusM * 180 / math.Pi
	cos := math.Cos(center.Lat * math.Pi / 180)
	dLng := 180.0
	if cos > 1e-12 {
		dLng = math.Min(dLat/cos, 180)
	}
	return Bounds{
		South: math.Max(center.Lat-dLat, -90),
		North: math.Min(center.Lat+dLat, 90),
		West:  center.Lng - dLng,
		East:  center.Lng + dLng,
	}
}

// Haversine distance in meters
func Haversine(a, b models.Coord) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusM * c
}
