// Package places resolves airports and hotels to coordinates through a
// places provider.
package places

import (
	"context"
	"errors"

	"github.com/example/transfer-booking/internal/geo"
	"github.com/example/transfer-booking/internal/models"
)

var (
	ErrNotFound = errors.New("places: not found")
	// ErrInvalidRequest is returned for stale or malformed place ids.
	ErrInvalidRequest = errors.New("places: invalid request")
)

type Prediction struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}

type AutocompleteRequest struct {
	Input string
	Type  string
	// Restrict limits predictions to a rectangle when set.
	Restrict *geo.Bounds
}

// Resolver is the geocoding capability used by the booking form.
type Resolver interface {
	FindPlaceID(ctx context.Context, query string) (string, error)
	// Details fetches a place. query is used to refresh a stale place id.
	Details(ctx context.Context, placeID, query string) (models.Location, error)
	Autocomplete(ctx context.Context, req AutocompleteRequest) ([]Prediction, error)
}
