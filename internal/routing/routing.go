// Package routing answers driving-distance questions for the drop-off
// radius gate.
package routing

import (
	"context"
	"errors"

	"github.com/example/transfer-booking/internal/geo"
	"github.com/example/transfer-booking/internal/models"
)

// ErrNoRoute is returned when the provider finds no drivable route.
var ErrNoRoute = errors.New("routing: no route")

type Result struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationSec float64 `json:"duration_sec"`
}

// Calculator is the driving-distance capability used by the booking form.
type Calculator interface {
	DrivingDistance(ctx context.Context, from, to models.Coord) (Result, error)
}

// CalculatorFunc adapts a function to Calculator.
type CalculatorFunc func(ctx context.Context, from, to models.Coord) (Result, error)

func (f CalculatorFunc) DrivingDistance(ctx context.Context, from, to models.Coord) (Result, error) {
	return f(ctx, from, to)
}

// StraightLine uses great-circle distance. It is meant for local runs
// without a routing server; road distance is always longer.
type StraightLine struct {
	SpeedMps float64
}

func (s StraightLine) DrivingDistance(ctx context.Context, from, to models.Coord) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	speed := s.SpeedMps
	if speed <= 0 {
		speed = 16.7 // ~60 km/h
	}
	m := geo.Haversine(from, to)
	return Result{DistanceKm: m / 1000, DurationSec: m / speed}, nil
}
