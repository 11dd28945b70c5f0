package form

import (
	"context"
	"fmt"
	"strconv"

	"github.com/example/transfer-booking/internal/geo"
	"github.com/example/transfer-booking/internal/models"
	"github.com/example/transfer-booking/internal/observability"
	"github.com/example/transfer-booking/internal/places"
)

const lodgingType = "lodging"

// SelectPickup resolves a catalog airport to coordinates. An unknown or
// empty id clears the pickup. Any pickup change resets the drop-off.
func (f *Form) SelectPickup(ctx context.Context, airportID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.deps.Catalog.Lookup(airportID)
	if !ok {
		f.pickup = LocationField{State: StateEmpty}
		return nil
	}

	// a failed lookup keeps the previous place but leaves it unvalidated
	f.dropOff = LocationField{State: StateEmpty}
	f.pickup = LocationField{State: StatePending, Input: a.ID, Location: f.pickup.Location}

	placeID, err := f.deps.Places.FindPlaceID(ctx, a.Query)
	if err != nil {
		f.deps.Logger.Warn("resolve airport place id", "airport", a.ID, "error", err)
		f.pickup.State = StateInvalid
		return f.reject("Could not resolve Place ID for " + a.Name)
	}
	info, err := f.deps.Places.Details(ctx, placeID, a.Query)
	if err != nil {
		f.deps.Logger.Warn("airport place details", "airport", a.ID, "place_id", placeID, "error", err)
		f.pickup.State = StateInvalid
		return f.reject("Invalid airport selection.")
	}
	if info.PlaceID != "" {
		placeID = info.PlaceID
	}

	f.pickup = LocationField{
		State: StateResolved,
		Input: a.ID,
		Location: &models.Location{
			ID:      a.ID,
			Name:    a.Name,
			Query:   a.Query,
			PlaceID: placeID,
			Lat:     info.Lat,
			Lng:     info.Lng,
			Address: info.Address,
		},
	}
	f.message = ""
	return nil
}

// TypeDropOff records free text typed into the drop-off field. Typing
// unvalidates the drop-off; a place chosen earlier stays attached until a
// new one is selected.
func (f *Form) TypeDropOff(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prev := f.dropOff.Location
	if text == "" && prev == nil {
		f.dropOff = LocationField{State: StateEmpty}
		return
	}
	f.dropOff = LocationField{State: StatePending, Input: text, Location: prev}
}

// DropOffBounds is the rectangle drop-off suggestions are restricted to:
// the circle of the pickup airport's radius around the pickup. It is nil
// until the pickup is resolved.
func (f *Form) DropOffBounds() *geo.Bounds {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropOffBounds()
}

func (f *Form) dropOffBounds() *geo.Bounds {
	if !f.pickup.resolved() {
		return nil
	}
	p := f.pickup.Location
	b := geo.CircleBounds(p.Coord(), f.deps.Catalog.RadiusKm(p.Name)*1000)
	return &b
}

// SuggestDropOffs returns lodging predictions for text.
func (f *Form) SuggestDropOffs(ctx context.Context, text string) ([]places.Prediction, error) {
	f.mu.Lock()
	bounds := f.dropOffBounds()
	f.mu.Unlock()

	preds, err := f.deps.Places.Autocomplete(ctx, places.AutocompleteRequest{
		Input:    text,
		Type:     lodgingType,
		Restrict: bounds,
	})
	if err != nil {
		return nil, fmt.Errorf("suggest drop-offs: %w", err)
	}
	return preds, nil
}

// SelectDropOffPlace resolves a suggestion and runs it through the
// radius gate.
func (f *Form) SelectDropOffPlace(ctx context.Context, placeID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	loc, err := f.deps.Places.Details(ctx, placeID, "")
	if err != nil {
		f.deps.Logger.Warn("drop-off place details", "place_id", placeID, "error", err)
		f.dropOff = LocationField{State: StateEmpty}
		observability.DropOffRejections.WithLabelValues("lookup").Inc()
		return f.reject("Please select a valid drop-off location.")
	}
	return f.selectDropOff(ctx, loc)
}

// SelectDropOff runs a resolved candidate through the radius gate.
func (f *Form) SelectDropOff(ctx context.Context, candidate models.Location) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.selectDropOff(ctx, candidate)
}

func (f *Form) selectDropOff(ctx context.Context, cand models.Location) error {
	if f.pickup.Location == nil {
		f.dropOff = LocationField{State: StateEmpty}
		observability.DropOffRejections.WithLabelValues("no_pickup").Inc()
		return f.reject("Please select a pickup location first.")
	}
	pickup := f.pickup.Location

	res, err := f.deps.Routing.DrivingDistance(ctx, pickup.Coord(), cand.Coord())
	if err != nil {
		f.deps.Logger.Warn("driving distance", "pickup", pickup.ID, "candidate", cand.PlaceID, "error", err)
		f.dropOff = LocationField{State: StateEmpty}
		observability.DropOffRejections.WithLabelValues("distance_error").Inc()
		return f.reject("Could not calculate driving distance. Try again.")
	}
	observability.DrivingDistanceKm.Observe(res.DistanceKm)

	maxKm := f.deps.Catalog.RadiusKm(pickup.Name)
	if res.DistanceKm > maxKm {
		f.dropOff = LocationField{State: StateEmpty}
		observability.DropOffRejections.WithLabelValues("radius").Inc()
		return f.reject(fmt.Sprintf("Selected drop-off (%s) is %.1f km away. Max allowed: %s km from %s.",
			cand.Name, res.DistanceKm, strconv.FormatFloat(maxKm, 'f', -1, 64), pickup.Name))
	}

	loc := cand
	f.dropOff = LocationField{State: StateResolved, Input: cand.Name, Location: &loc}
	f.message = ""
	return nil
}
