package form

import (
	"strconv"
	"time"

	"github.com/example/transfer-booking/internal/models"
)

const (
	dateLayout = "2006-01-02"
	hourLayout = "15:04"
)

func (f *Form) today() time.Time {
	now := f.opts.Now().In(f.opts.Location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, f.opts.Location)
}

// SetDate selects the pickup date (YYYY-MM-DD). Changing the date clears
// the selected hour.
func (f *Form) SetDate(value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, err := time.ParseInLocation(dateLayout, value, f.opts.Location)
	if err != nil {
		return f.reject("Please select a valid pickup date.")
	}
	if d.Before(f.today()) {
		return f.reject("Pickup date cannot be in the past.")
	}
	f.date = &d
	f.hour = ""
	f.message = ""
	return nil
}

// SetTime selects the pickup hour (HH:MM). A date must be chosen first;
// for today the pickup must be at least MinPrep ahead of now.
func (f *Form) SetTime(value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.date == nil {
		return f.reject("Please select a pickup date first.")
	}
	t, err := time.Parse(hourLayout, value)
	if err != nil {
		return f.reject("Please select a valid pickup time.")
	}
	d := *f.date
	selected := time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, f.opts.Location)

	if d.Equal(f.today()) {
		earliest := f.opts.Now().Add(f.opts.MinPrep)
		if selected.Before(earliest) {
			f.hour = ""
			return f.reject("Minimum booking time is " + formatHours(f.opts.MinPrep) + " hours from now.")
		}
	}
	f.message = ""
	f.hour = value
	return nil
}

// minHour is the earliest selectable hour for the chosen date, if bounded.
func (f *Form) minHour() string {
	if f.date == nil || !f.date.Equal(f.today()) {
		return ""
	}
	return f.opts.Now().Add(f.opts.MinPrep).In(f.opts.Location).Format(hourLayout)
}

// SetPassengerCount sets the passenger count; out-of-range values clear it.
func (f *Form) SetPassengerCount(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n < models.MinPassengers || n > models.MaxPassengers {
		f.passengers = 0
		return f.reject("Passenger count must be between 1 and 45.")
	}
	f.passengers = n
	return nil
}

func formatHours(d time.Duration) string {
	return strconv.FormatFloat(d.Hours(), 'f', -1, 64)
}
