package form

import (
	"github.com/example/transfer-booking/internal/geo"
	"github.com/example/transfer-booking/internal/models"
)

type View struct {
	UUID           string        `json:"uuid"`
	Pickup         LocationField `json:"pickup"`
	DropOff        LocationField `json:"drop_off"`
	DropOffBounds  *geo.Bounds   `json:"drop_off_bounds,omitempty"`
	PickupDate     string        `json:"pickup_date,omitempty"`
	PickupDateText string        `json:"pickup_date_text,omitempty"`
	PickupHour     string        `json:"pickup_hour,omitempty"`
	MinHour        string        `json:"min_hour,omitempty"`
	PassengerCount int           `json:"passenger_count"`
	Message        string        `json:"message,omitempty"`
	Redirect       string        `json:"redirect,omitempty"`
}

func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		UUID:           f.uuid,
		Pickup:         copyField(f.pickup),
		DropOff:        copyField(f.dropOff),
		DropOffBounds:  f.dropOffBounds(),
		PickupHour:     f.hour,
		MinHour:        f.minHour(),
		PassengerCount: f.passengers,
		Message:        f.message,
		Redirect:       f.redirect,
	}
	if f.date != nil {
		v.PickupDate = f.date.Format(dateLayout)
		v.PickupDateText = f.date.Format(models.PickupDateLayout)
	}
	return v
}

func copyField(lf LocationField) LocationField {
	if lf.Location != nil {
		loc := *lf.Location
		lf.Location = &loc
	}
	return lf
}
