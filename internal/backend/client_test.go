package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/transfer-booking/internal/models"
)

func TestCreateDraft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/form-data", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var tr models.TripRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&tr))
		assert.Equal(t, "u-1", tr.UUID)
		assert.Equal(t, "Sat Oct 17 2026", tr.PickupDate)
		fmt.Fprint(w, `{"status":200,"message":"saved"}`)
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL, time.Second).CreateDraft(context.Background(), models.TripRequest{
		UUID: "u-1", PickupDate: "Sat Oct 17 2026", PickupHour: "14:00", PassengerCount: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 200, status)
}

func TestGetBookingNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "abc", r.URL.Query().Get("uuid"))
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).GetBooking(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBookingNotFound))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Status)
}

func TestSendBookingMailCarriesRawDocument(t *testing.T) {
	var got map[string]any
	var key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/get-booking":
			fmt.Fprint(w, `{"uuid":"b1","status":"paid","booking":{"total_price":100,"vehicle_name":"Vito"},"custom_field":"kept"}`)
		case "/api/send-booking-mail":
			key = r.Header.Get("Idempotency-Key")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, time.Second)
	b, err := c.GetBooking(context.Background(), "b1")
	require.NoError(t, err)
	price := int64(108)
	require.NoError(t, c.SendBookingMail(context.Background(), b, &price, "€"))

	assert.Equal(t, "kept", got["custom_field"])
	assert.Equal(t, float64(108), got["price"])
	assert.Equal(t, "€", got["symbol"])
	assert.Equal(t, "b1", got["uuid"])
	assert.Equal(t, "mail:b1", key)

	require.NoError(t, c.SendBookingMail(context.Background(), b, nil, "€"))
	v, ok := got["price"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestUpdatePaymentStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]string{"uuid": "b1", "status": "accepted"}, body)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, time.Second).UpdatePaymentStatus(context.Background(), "b1", models.StatusAccepted)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "/api/update-payment-status", se.Path)
}
