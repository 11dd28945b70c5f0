package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Booking statuses as persisted by the backend.
const (
	StatusPending  = "pending"
	StatusPaid     = "paid"
	StatusCash     = "cash"
	StatusAccepted = "accepted"

	PaymentCard = "card"
	PaymentCash = "cash"
)

const (
	MinPassengers = 1
	MaxPassengers = 45
)

// PickupDateLayout matches the date string the backend already stores.
const PickupDateLayout = "Mon Jan 02 2006"

type Coord struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Location is a resolved place. Pickup locations also carry the catalog
// id, display name and search query they were resolved from.
type Location struct {
	ID      string  `json:"id,omitempty"`
	Name    string  `json:"name"`
	Query   string  `json:"query,omitempty"`
	PlaceID string  `json:"placeId"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

func (l Location) Coord() Coord { return Coord{Lat: l.Lat, Lng: l.Lng} }

func (l Location) IsZero() bool {
	return l.Name == "" && l.PlaceID == "" && l.Address == "" && l.Lat == 0 && l.Lng == 0
}

// SamePlace reports whether two locations denote the same place.
func (l Location) SamePlace(o Location) bool {
	if l.PlaceID != "" && o.PlaceID != "" {
		return l.PlaceID == o.PlaceID
	}
	return l.Name == o.Name && l.Lat == o.Lat && l.Lng == o.Lng
}

type TripRequest struct {
	PickupLocation  Location `json:"pickup_location"`
	DropOffLocation Location `json:"drop_off_location"`
	PickupDate      string   `json:"pickup_date"`
	PickupHour      string   `json:"pickup_hour"`
	PassengerCount  int      `json:"passenger_count"`
	UUID            string   `json:"uuid"`
}

type ContactDetails struct {
	Name         string `json:"name"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	FlightNumber string `json:"flightNumber,omitempty"`
	Message      string `json:"message,omitempty"`
}

type PriceInfo struct {
	TotalPrice  *float64 `json:"total_price,omitempty"`
	VehicleName string   `json:"vehicle_name,omitempty"`
}

type ReturnTrip struct {
	ReturnTrip  bool   `json:"return_trip"`
	ReturnDate  string `json:"return_date,omitempty"`
	ReturnHour  string `json:"return_hour,omitempty"`
	ReturnCount int    `json:"return_count,omitempty"`
}

type PlaceRef struct {
	Name string `json:"name"`
}

// Booking is the server-owned record read by the confirmation page.
type Booking struct {
	UUID            string          `json:"uuid"`
	Status          string          `json:"status"`
	PaymentMethod   string          `json:"payment_method"`
	PaymentIntentID string          `json:"payment_intent_id,omitempty"`
	Details         *ContactDetails `json:"details,omitempty"`
	PassengerCount  int             `json:"passenger_count"`
	PickupLocation  *PlaceRef       `json:"pickup_location,omitempty"`
	DropOffLocation *PlaceRef       `json:"drop_off_location,omitempty"`
	PickupDate      string          `json:"pickup_date"`
	PickupHour      string          `json:"pickup_hour"`
	Booking         *PriceInfo      `json:"booking,omitempty"`
	Price           *float64        `json:"price,omitempty"`
	Extras          Extras          `json:"extras,omitempty"`
	ReturnData      *ReturnTrip     `json:"return_data,omitempty"`

	// Raw is the document as the backend sent it.
	Raw json.RawMessage `json:"-"`
}

// DecodeBooking parses a backend booking document and keeps the raw bytes.
func DecodeBooking(data []byte) (*Booking, error) {
	var b Booking
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode booking: %w", err)
	}
	b.Raw = append(json.RawMessage(nil), data...)
	return &b, nil
}

// BasePrice is the booking total, falling back to the raw price field.
func (b *Booking) BasePrice() (float64, bool) {
	if b.Booking != nil && b.Booking.TotalPrice != nil {
		return *b.Booking.TotalPrice, true
	}
	if b.Price != nil {
		return *b.Price, true
	}
	return 0, false
}

// Extra is one entry of the extras record.
type Extra struct {
	Key   string
	Value any
}

// Extras keeps the record's entries in document order.
type Extras []Extra

func (e *Extras) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*e = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("extras: expected object, got %v", tok)
	}
	out := Extras{}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := kt.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		out = append(out, Extra{Key: key, Value: v})
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return err
	}
	*e = out
	return nil
}

func (e Extras) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, x := range e {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(x.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(x.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// BookingEvent is published on the booking lifecycle topic.
type BookingEvent struct {
	Type   string `json:"type"`
	UUID   string `json:"uuid"`
	Status string `json:"status,omitempty"`
	At     int64  `json:"at"`
}

const (
	EventDraftSubmitted   = "booking.draft_submitted"
	EventConfirmationSent = "booking.confirmation_sent"
	EventAccepted         = "booking.accepted"
)
