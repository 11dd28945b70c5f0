package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/transfer-booking/internal/backend"
	"github.com/example/transfer-booking/internal/confirm"
	"github.com/example/transfer-booking/internal/currency"
	"github.com/example/transfer-booking/internal/form"
	"github.com/example/transfer-booking/internal/logging"
	"github.com/example/transfer-booking/internal/models"
	"github.com/example/transfer-booking/internal/places"
	"github.com/example/transfer-booking/internal/routing"
)

type stubPlaces struct{}

func (stubPlaces) FindPlaceID(ctx context.Context, query string) (string, error) {
	return "pid:" + query, nil
}

func (stubPlaces) Details(ctx context.Context, placeID, query string) (models.Location, error) {
	return models.Location{Name: "Airport", PlaceID: placeID, Lat: 41.2753, Lng: 28.7519}, nil
}

func (stubPlaces) Autocomplete(ctx context.Context, req places.AutocompleteRequest) ([]places.Prediction, error) {
	return []places.Prediction{{PlaceID: "h1", Description: "Hotel One, " + req.Input}}, nil
}

// fakeBackend serves the booking backend endpoints and counts calls.
type fakeBackend struct {
	mu      sync.Mutex
	doc     string
	calls   map[string]int
	drafts  []models.TripRequest
	cleaned chan struct{}
}

func newFakeBackend(doc string) *fakeBackend {
	return &fakeBackend{doc: doc, calls: map[string]int{}, cleaned: make(chan struct{}, 4)}
}

func (f *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls[r.URL.Path]++
	f.mu.Unlock()
	switch r.URL.Path {
	case "/api/form-data":
		var tr models.TripRequest
		_ = json.NewDecoder(r.Body).Decode(&tr)
		f.mu.Lock()
		f.drafts = append(f.drafts, tr)
		f.mu.Unlock()
		fmt.Fprint(w, `{"status":200}`)
	case "/api/cleanup":
		f.cleaned <- struct{}{}
	case "/api/get-booking":
		fmt.Fprint(w, f.doc)
	}
}

func (f *fakeBackend) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *fakeBackend) draftList() []models.TripRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.TripRequest(nil), f.drafts...)
}

type harness struct {
	srv *httptest.Server
	api *Server
	be  *fakeBackend

	mu sync.Mutex
	km float64
}

func (h *harness) setKm(km float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.km = km
}

func (h *harness) distance() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.km
}

func newHarness(t *testing.T, doc string) *harness {
	t.Helper()
	h := &harness{be: newFakeBackend(doc), km: 10}
	beSrv := httptest.NewServer(h.be)
	t.Cleanup(beSrv.Close)
	client := backend.NewClient(beSrv.URL, time.Second)

	trt := time.FixedZone("TRT", 3*60*60)
	s := NewServer(Config{
		FormDeps: form.Deps{
			Places: stubPlaces{},
			Routing: routing.CalculatorFunc(func(ctx context.Context, from, to models.Coord) (routing.Result, error) {
				return routing.Result{DistanceKm: h.distance()}, nil
			}),
			Backend: client,
		},
		FormOptions: form.Options{
			Location: trt,
			Now:      func() time.Time { return time.Date(2026, 10, 17, 10, 0, 0, 0, trt) },
		},
		PageDeps: confirm.Deps{
			Backend:  client,
			Currency: currency.NewRateTable("EUR", map[string]float64{"USD": 1.08}),
		},
		PageOptions: confirm.Options{AutoRedirect: true, Tick: time.Millisecond, Currency: "EUR"},
		SessionTTL:  time.Minute,
		Logger:      logging.Discard(),
	})
	h.api = s
	h.srv = httptest.NewServer(s)
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, h.srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHealthAndAirports(t *testing.T) {
	h := newHarness(t, "{}")
	resp, err := http.Get(h.srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(h.srv.URL + "/api/airports")
	require.NoError(t, err)
	defer resp.Body.Close()
	var airports []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&airports))
	require.Len(t, airports, 12)
	assert.Equal(t, "IST", airports[0]["id"])
	assert.Equal(t, 70.0, airports[0]["radius_km"])
}

func TestFormFlow(t *testing.T) {
	h := newHarness(t, "{}")

	resp, view := h.do(t, http.MethodPost, "/api/forms", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := view["uuid"].(string)
	base := "/api/forms/" + id

	resp, _ = h.do(t, http.MethodPut, base+"/pickup", map[string]string{"airport_id": "IST"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodGet, base+"/dropoff/suggestions?q=sultan", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	h.setKm(71)
	hotel := models.Location{Name: "Hotel One", PlaceID: "h1", Lat: 41.0, Lng: 28.9}
	resp, out := h.do(t, http.MethodPut, base+"/dropoff", map[string]any{"location": hotel})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Selected drop-off (Hotel One) is 71.0 km away. Max allowed: 70 km from Istanbul Airport.", out["error"])

	h.setKm(12)
	resp, _ = h.do(t, http.MethodPut, base+"/dropoff", map[string]any{"location": hotel})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = h.do(t, http.MethodPut, base+"/date", map[string]string{"date": "2026-10-17"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, out = h.do(t, http.MethodPut, base+"/time", map[string]string{"time": "11:00"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Minimum booking time is 2 hours from now.", out["error"])
	resp, _ = h.do(t, http.MethodPut, base+"/time", map[string]string{"time": "12:30"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = h.do(t, http.MethodPut, base+"/passengers", map[string]int{"count": 4})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, out = h.do(t, http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/booking?uuid="+id, out["redirect"])

	// a submitted form is dropped from the session registry
	resp, _ = h.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Zero(t, h.api.Forms.Len())

	select {
	case <-h.be.cleaned:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup was not fired")
	}
	drafts := h.be.draftList()
	require.Len(t, drafts, 1)
	assert.Equal(t, "Sat Oct 17 2026", drafts[0].PickupDate)
	assert.Equal(t, 4, drafts[0].PassengerCount)
}

func TestSubmitRejectionAnswers422(t *testing.T) {
	h := newHarness(t, "{}")
	_, view := h.do(t, http.MethodPost, "/api/forms", nil)
	resp, out := h.do(t, http.MethodPost, "/api/forms/"+view["uuid"].(string)+"/submit", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Please fill in all fields.", out["error"])
	assert.Zero(t, h.be.count("/api/form-data"))
}

func TestUnknownSessions404(t *testing.T) {
	h := newHarness(t, "{}")
	resp, _ := h.do(t, http.MethodGet, "/api/forms/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = h.do(t, http.MethodPost, "/api/success/nope/confirm", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

const cashDoc = `{"uuid":"b2","status":"cash","payment_method":"cash","booking":{"total_price":100,"vehicle_name":"Vito"}}`

func TestCashConfirmation(t *testing.T) {
	h := newHarness(t, cashDoc)

	resp, view := h.do(t, http.MethodGet, "/api/success?order=b2&uuid=other&currency=USD", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "loaded", view["phase"])
	assert.Equal(t, "cash", view["path"])
	assert.Equal(t, 108.0, view["price"])
	assert.Zero(t, h.be.count("/api/send-booking-mail"))
	page := view["id"].(string)

	resp, view = h.do(t, http.MethodPut, "/api/success/"+page+"/currency", map[string]string{"currency": "EUR"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 100.0, view["price"])

	resp, out := h.do(t, http.MethodPut, "/api/success/"+page+"/currency", map[string]string{"currency": "XYZ"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, out["error"])

	resp, view = h.do(t, http.MethodPost, "/api/success/"+page+"/confirm", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/", view["redirect"])
	assert.Equal(t, 1, h.be.count("/api/send-booking-mail"))
	assert.Equal(t, 1, h.be.count("/api/update-payment-status"))
	assert.Equal(t, 1, h.be.count("/api/get-booking"))

	resp, _ = h.do(t, http.MethodPost, "/api/success/"+page+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, 1, h.be.count("/api/send-booking-mail"))
}

func TestOpenPageUnknownCurrencyRegistersNothing(t *testing.T) {
	h := newHarness(t, cashDoc)
	resp, out := h.do(t, http.MethodGet, "/api/success?uuid=b2&currency=XYZ", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.NotEmpty(t, out["error"])
	assert.Zero(t, h.api.Pages.Len())
	assert.Zero(t, h.be.count("/api/get-booking"))

	resp, view := h.do(t, http.MethodGet, "/api/success?uuid=b2&currency=USD", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "loaded", view["phase"])
	assert.Equal(t, 1, h.api.Pages.Len())
}

func TestOpenPageWithoutOrderStaysIdle(t *testing.T) {
	h := newHarness(t, cashDoc)
	resp, view := h.do(t, http.MethodGet, "/api/success", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "idle", view["phase"])
	assert.Zero(t, h.be.count("/api/get-booking"))
}

func TestCardCountdownStream(t *testing.T) {
	h := newHarness(t, `{"uuid":"b1","status":"paid","payment_method":"card","booking":{"total_price":100}}`)

	_, view := h.do(t, http.MethodGet, "/api/success?uuid=b1", nil)
	page := view["id"].(string)
	assert.Equal(t, 1, h.be.count("/api/send-booking-mail"))

	url := "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/ws/success/" + page
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var last confirm.View
	for {
		var v confirm.View
		if err := conn.ReadJSON(&v); err != nil {
			break
		}
		last = v
	}
	assert.Equal(t, "/", last.Redirect)
	assert.Equal(t, confirm.PathCard, last.Path)
	assert.Equal(t, 1, h.be.count("/api/send-booking-mail"))
	assert.Equal(t, 1, h.be.count("/api/update-payment-status"))
}
