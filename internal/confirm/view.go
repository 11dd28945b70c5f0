package confirm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/transfer-booking/internal/models"
)

type Line struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Action struct {
	Label    string `json:"label"`
	Href     string `json:"href,omitempty"`
	Disabled bool   `json:"disabled"`
}

// View is a snapshot of the page.
type View struct {
	ID        string  `json:"id"`
	OrderID   string  `json:"order_id,omitempty"`
	Phase     Phase   `json:"phase"`
	Path      Path    `json:"path,omitempty"`
	Title     string  `json:"title,omitempty"`
	Note      string  `json:"note,omitempty"`
	Details   []Line  `json:"details,omitempty"`
	Price     *int64  `json:"price"`
	Symbol    string  `json:"symbol"`
	Currency  string  `json:"currency,omitempty"`
	Action    *Action `json:"action,omitempty"`
	Countdown int     `json:"countdown,omitempty"`
	Notice    string  `json:"notice,omitempty"`
	Error     string  `json:"error,omitempty"`
	Redirect  string  `json:"redirect,omitempty"`
}

func (p *Page) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *Page) viewLocked() View {
	v := View{
		ID:        p.id,
		OrderID:   p.orderID,
		Phase:     p.phase,
		Path:      p.path,
		Symbol:    p.symbol,
		Currency:  p.currency,
		Countdown: p.countdown,
		Notice:    p.notice,
		Error:     p.failure,
		Redirect:  p.redirect,
	}
	if p.price != nil {
		price := *p.price
		v.Price = &price
	}
	if p.phase != PhaseLoaded || p.booking == nil {
		return v
	}

	if p.path == PathCard {
		v.Title = "Payment Confirmed"
		v.Note = "Your credit card payment has been confirmed. Thank you for your trust."
		v.Action = &Action{Label: "Homepage", Href: p.opts.HomeRoute, Disabled: p.sending}
	} else {
		v.Title = "Payment Pending"
		v.Note = "You chose cash payment. Please pay the driver or at the counter.\n" +
			"Click “Confirm & Send Mail” below to finalize your booking."
		label := "Confirm & Send Mail"
		if p.sending {
			label = "Sending..."
		}
		v.Action = &Action{Label: label, Disabled: p.sending}
	}
	v.Details = detailLines(p.booking, p.path, v.Price, p.symbol)
	return v
}

func detailLines(b *models.Booking, path Path, price *int64, symbol string) []Line {
	var d models.ContactDetails
	if b.Details != nil {
		d = *b.Details
	}
	lines := []Line{
		{"Name", strings.TrimSpace(d.Name + " " + d.LastName)},
		{"Email", d.Email},
		{"Phone", d.Phone},
	}
	if d.FlightNumber != "" {
		lines = append(lines, Line{"Flight Number", d.FlightNumber})
	}
	if d.Message != "" {
		lines = append(lines, Line{"Message", d.Message})
	}

	vehicle := ""
	if b.Booking != nil {
		vehicle = b.Booking.VehicleName
	}
	lines = append(lines,
		Line{"Passengers", strconv.Itoa(b.PassengerCount)},
		Line{"Pickup", placeName(b.PickupLocation)},
		Line{"Drop Off", placeName(b.DropOffLocation)},
		Line{"Pickup Date", b.PickupDate},
		Line{"Pickup Hour", b.PickupHour},
		Line{"Vehicle", vehicle},
	)
	if extras := RenderExtras(b.Extras); extras != "" {
		lines = append(lines, Line{"Extras", extras})
	}
	if rt := b.ReturnData; rt != nil && rt.ReturnTrip {
		lines = append(lines, Line{"Return Trip", returnLine(rt)})
	}

	payment := "Cash"
	if path == PathCard {
		payment = "Credit Card"
	}
	priceText := ""
	if price != nil {
		priceText = strconv.FormatInt(*price, 10)
	}
	lines = append(lines,
		Line{"Payment", payment},
		Line{"Price", strings.TrimSpace(priceText + " " + symbol)},
	)
	return lines
}

func placeName(p *models.PlaceRef) string {
	if p == nil {
		return ""
	}
	return p.Name
}

func returnLine(rt *models.ReturnTrip) string {
	s := rt.ReturnDate
	if s == "" {
		s = "N/A"
	}
	if rt.ReturnHour != "" {
		s += " at " + rt.ReturnHour
	}
	if rt.ReturnCount != 0 {
		s += fmt.Sprintf(" - Passengers: %d", rt.ReturnCount)
	}
	return s
}

var extraLabels = map[string]string{
	"airportAssistance": "Airport Assistance",
	"flowers":           "Flowers",
	"wait":              "Waiting Service",
}

// RenderExtras lists the selected extras in the order the booking carries
// them. Falsy entries are skipped and unknown keys are shown as is.
func RenderExtras(extras models.Extras) string {
	out := make([]string, 0, len(extras))
	for _, x := range extras {
		if !truthy(x.Value) {
			continue
		}
		switch {
		case x.Key == "childSeat":
			out = append(out, fmt.Sprintf("Child Seat (%v)", x.Value))
		case extraLabels[x.Key] != "":
			out = append(out, extraLabels[x.Key])
		default:
			out = append(out, x.Key)
		}
	}
	return strings.Join(out, ", ")
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case json.Number:
		f, err := x.Float64()
		return err != nil || f != 0
	case float64:
		return x != 0
	case int:
		return x != 0
	default:
		return true
	}
}
