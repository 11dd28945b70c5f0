package form

import (
	"context"
	"net/http"
	"net/url"

	"github.com/example/transfer-booking/internal/models"
	"github.com/example/transfer-booking/internal/observability"
)

// Result of a successful submit.
type Result struct {
	UUID     string `json:"uuid"`
	Redirect string `json:"redirect"`
}

// Submit validates the form, posts the trip request and navigates to the
// confirmation route. Checks run in a fixed order and stop at the first
// failure; no request is made unless all pass.
func (f *Form) Submit(ctx context.Context) (Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.validate(); err != nil {
		observability.FormSubmissions.WithLabelValues("rejected").Inc()
		return Result{}, err
	}

	tr := models.TripRequest{
		PickupLocation:  *f.pickup.Location,
		DropOffLocation: *f.dropOff.Location,
		PickupDate:      f.date.Format(models.PickupDateLayout),
		PickupHour:      f.hour,
		PassengerCount:  f.passengers,
		UUID:            f.uuid,
	}

	status, err := f.deps.Backend.CreateDraft(ctx, tr)
	if err != nil {
		f.deps.Logger.Error("create booking draft", "error", err)
		observability.FormSubmissions.WithLabelValues("backend_error").Inc()
		return Result{}, f.reject("Could not submit your request. Please try again.")
	}
	defer f.fireCleanup(ctx)

	if status != http.StatusOK {
		f.deps.Logger.Error("create booking draft", "status", status)
		observability.FormSubmissions.WithLabelValues("backend_error").Inc()
		return Result{}, f.reject("Could not submit your request. Please try again.")
	}

	f.message = "Form submitted successfully!"
	f.redirect = f.opts.ConfirmRoute + "?uuid=" + url.QueryEscape(f.uuid)
	observability.FormSubmissions.WithLabelValues("submitted").Inc()

	if err := f.deps.Events.Publish(ctx, models.BookingEvent{Type: models.EventDraftSubmitted, UUID: f.uuid}); err != nil {
		f.deps.Logger.Warn("publish draft event", "error", err)
	}
	return Result{UUID: f.uuid, Redirect: f.redirect}, nil
}

func (f *Form) validate() error {
	if f.pickup.Location == nil || f.dropOff.Location == nil || f.date == nil || f.hour == "" || f.passengers == 0 {
		return f.reject("Please fill in all fields.")
	}
	if !f.pickup.resolved() {
		return f.reject("Please select a valid pickup location.")
	}
	if !f.dropOff.resolved() {
		return f.reject("Please select a valid drop-off location.")
	}
	if f.pickup.Location.IsZero() || f.dropOff.Location.IsZero() {
		return f.reject("Please fill in location fields.")
	}
	if f.pickup.Location.SamePlace(*f.dropOff.Location) {
		return f.reject("Pickup and drop-off locations cannot be the same.")
	}
	return nil
}

// fireCleanup asks the backend to drop stale drafts without holding up
// the caller.
func (f *Form) fireCleanup(ctx context.Context) {
	f.cleanups.Add(1)
	go func() {
		defer f.cleanups.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.opts.CleanupTimeout)
		defer cancel()
		if err := f.deps.Backend.Cleanup(ctx); err != nil {
			f.deps.Logger.Warn("cleanup drafts", "error", err)
		}
	}()
}
