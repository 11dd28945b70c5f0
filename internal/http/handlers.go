package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/transfer-booking/internal/catalog"
	"github.com/example/transfer-booking/internal/confirm"
	"github.com/example/transfer-booking/internal/currency"
	"github.com/example/transfer-booking/internal/dispatch"
	"github.com/example/transfer-booking/internal/form"
	"github.com/example/transfer-booking/internal/models"
	"github.com/example/transfer-booking/internal/observability"
	"github.com/example/transfer-booking/internal/storage"
)

// Config wires the collaborators of both booking flows.
type Config struct {
	FormDeps    form.Deps
	FormOptions form.Options
	PageDeps    confirm.Deps
	PageOptions confirm.Options
	SessionTTL  time.Duration
	Logger      *slog.Logger
}

type Server struct {
	Catalog *catalog.Catalog
	Forms   *storage.Registry[*form.Form]
	Pages   *storage.Registry[*confirm.Page]
	WSReg   *dispatch.WSRegistry

	cfg    Config
	logger *slog.Logger
	mux    *mux.Router
}

func NewServer(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.FormDeps.Catalog == nil {
		cfg.FormDeps.Catalog = catalog.New(nil)
	}
	if cfg.FormDeps.Logger == nil {
		cfg.FormDeps.Logger = cfg.Logger
	}
	if cfg.PageDeps.Logger == nil {
		cfg.PageDeps.Logger = cfg.Logger
	}
	s := &Server{
		Catalog: cfg.FormDeps.Catalog,
		Forms:   storage.NewRegistry[*form.Form](cfg.SessionTTL),
		Pages:   storage.NewRegistry[*confirm.Page](cfg.SessionTTL),
		WSReg:   dispatch.NewWSRegistry(cfg.Logger),
		cfg:     cfg,
		logger:  cfg.Logger,
		mux:     mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) }).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())

	api := s.mux.PathPrefix("/api").Subrouter()
	api.HandleFunc("/airports", s.handleAirports).Methods("GET")

	api.HandleFunc("/forms", s.handleCreateForm).Methods("POST")
	api.HandleFunc("/forms/{id}", s.withForm(s.handleFormView)).Methods("GET")
	api.HandleFunc("/forms/{id}/pickup", s.withForm(s.handlePickup)).Methods("PUT")
	api.HandleFunc("/forms/{id}/dropoff/input", s.withForm(s.handleDropOffInput)).Methods("PUT")
	api.HandleFunc("/forms/{id}/dropoff/suggestions", s.withForm(s.handleSuggestions)).Methods("GET")
	api.HandleFunc("/forms/{id}/dropoff", s.withForm(s.handleDropOff)).Methods("PUT")
	api.HandleFunc("/forms/{id}/date", s.withForm(s.handleDate)).Methods("PUT")
	api.HandleFunc("/forms/{id}/time", s.withForm(s.handleTime)).Methods("PUT")
	api.HandleFunc("/forms/{id}/passengers", s.withForm(s.handlePassengers)).Methods("PUT")
	api.HandleFunc("/forms/{id}/submit", s.withForm(s.handleSubmit)).Methods("POST")

	api.HandleFunc("/success", s.handleOpenPage).Methods("GET")
	api.HandleFunc("/success/{page}/currency", s.withPage(s.handleCurrency)).Methods("PUT")
	api.HandleFunc("/success/{page}/confirm", s.withPage(s.handleConfirm)).Methods("POST")

	s.mux.HandleFunc("/ws/success/{page}", s.withPage(s.handleWS))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

// SweepSessions forgets idle form sessions and page loads.
func (s *Server) SweepSessions() {
	forms := s.Forms.Sweep()
	pages := s.Pages.Sweep()
	for _, p := range pages {
		if n := s.WSReg.Count(p.ID()); n > 0 {
			s.logger.Info("closing idle page with live watchers", "page", p.ID(), "watchers", n)
		}
		p.Close()
	}
	if len(forms)+len(pages) > 0 {
		s.logger.Debug("sessions swept", "forms", len(forms), "pages", len(pages))
	}
	s.updateSessionGauge()
}

func (s *Server) updateSessionGauge() {
	observability.ActiveSessions.WithLabelValues("form").Set(float64(s.Forms.Len()))
	observability.ActiveSessions.WithLabelValues("page").Set(float64(s.Pages.Len()))
}

type airportResponse struct {
	catalog.Airport
	RadiusKm float64 `json:"radius_km"`
}

func (s *Server) handleAirports(w http.ResponseWriter, r *http.Request) {
	airports := s.Catalog.Airports()
	out := make([]airportResponse, 0, len(airports))
	for _, a := range airports {
		out = append(out, airportResponse{Airport: a, RadiusKm: s.Catalog.RadiusKm(a.Name)})
	}
	writeJSON(w, http.StatusOK, out)
}

// Form session handlers.

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	f := form.New(s.cfg.FormDeps, s.cfg.FormOptions)
	s.Forms.Put(f.UUID(), f)
	s.updateSessionGauge()
	writeJSON(w, http.StatusCreated, f.View())
}

func (s *Server) withForm(h func(http.ResponseWriter, *http.Request, *form.Form)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, ok := s.Forms.Get(mux.Vars(r)["id"])
		if !ok {
			writeError(w, http.StatusNotFound, "form not found", nil)
			return
		}
		h(w, r, f)
	}
}

func (s *Server) handleFormView(w http.ResponseWriter, r *http.Request, f *form.Form) {
	writeJSON(w, http.StatusOK, f.View())
}

func (s *Server) handlePickup(w http.ResponseWriter, r *http.Request, f *form.Form) {
	var body struct {
		AirportID string `json:"airport_id"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.formResult(w, r, f, f.SelectPickup(r.Context(), body.AirportID))
}

func (s *Server) handleDropOffInput(w http.ResponseWriter, r *http.Request, f *form.Form) {
	var body struct {
		Text string `json:"text"`
	}
	if !decode(w, r, &body) {
		return
	}
	f.TypeDropOff(body.Text)
	writeJSON(w, http.StatusOK, f.View())
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request, f *form.Form) {
	preds, err := f.SuggestDropOffs(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.log(r).Warn("drop-off suggestions", "error", err)
		writeError(w, http.StatusBadGateway, "suggestions unavailable", nil)
		return
	}
	writeJSON(w, http.StatusOK, preds)
}

func (s *Server) handleDropOff(w http.ResponseWriter, r *http.Request, f *form.Form) {
	var body struct {
		PlaceID  string           `json:"place_id"`
		Location *models.Location `json:"location"`
	}
	if !decode(w, r, &body) {
		return
	}
	var err error
	switch {
	case body.PlaceID != "":
		err = f.SelectDropOffPlace(r.Context(), body.PlaceID)
	case body.Location != nil:
		err = f.SelectDropOff(r.Context(), *body.Location)
	default:
		writeError(w, http.StatusBadRequest, "place_id or location is required", nil)
		return
	}
	s.formResult(w, r, f, err)
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request, f *form.Form) {
	var body struct {
		Date string `json:"date"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.formResult(w, r, f, f.SetDate(body.Date))
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request, f *form.Form) {
	var body struct {
		Time string `json:"time"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.formResult(w, r, f, f.SetTime(body.Time))
}

func (s *Server) handlePassengers(w http.ResponseWriter, r *http.Request, f *form.Form) {
	var body struct {
		Count int `json:"count"`
	}
	if !decode(w, r, &body) {
		return
	}
	s.formResult(w, r, f, f.SetPassengerCount(body.Count))
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, f *form.Form) {
	res, err := f.Submit(r.Context())
	if err != nil {
		s.formResult(w, r, f, err)
		return
	}
	// the browser leaves for the confirmation page; the form is done
	s.Forms.Delete(f.UUID())
	s.updateSessionGauge()
	writeJSON(w, http.StatusOK, map[string]any{"uuid": res.UUID, "redirect": res.Redirect, "view": f.View()})
}

func (s *Server) formResult(w http.ResponseWriter, r *http.Request, f *form.Form, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, f.View())
	case form.IsRejection(err):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), f.View())
	default:
		s.log(r).Error("form operation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", f.View())
	}
}

// Confirmation page handlers.

func (s *Server) handleOpenPage(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	p := confirm.New(s.cfg.PageDeps, s.cfg.PageOptions, confirm.OrderID(q))

	// the page is only registered once it can load
	if code := q.Get("currency"); code != "" {
		if err := p.SetCurrency(r.Context(), code); err != nil {
			view := p.View()
			p.Close()
			writeError(w, http.StatusUnprocessableEntity, err.Error(), view)
			return
		}
	}
	s.Pages.Put(p.ID(), p)
	s.updateSessionGauge()

	if err := p.Load(r.Context()); err != nil && !errors.Is(err, confirm.ErrNoOrder) {
		s.log(r).Warn("load confirmation page", "page", p.ID(), "error", err)
	}
	writeJSON(w, http.StatusOK, p.View())
}

func (s *Server) withPage(h func(http.ResponseWriter, *http.Request, *confirm.Page)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := s.Pages.Get(mux.Vars(r)["page"])
		if !ok {
			writeError(w, http.StatusNotFound, "page not found", nil)
			return
		}
		h(w, r, p)
	}
}

func (s *Server) handleCurrency(w http.ResponseWriter, r *http.Request, p *confirm.Page) {
	var body struct {
		Currency string `json:"currency"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := p.SetCurrency(r.Context(), body.Currency); err != nil {
		if errors.Is(err, currency.ErrUnknownCurrency) {
			writeError(w, http.StatusUnprocessableEntity, err.Error(), p.View())
			return
		}
		s.log(r).Error("set currency", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", p.View())
		return
	}
	writeJSON(w, http.StatusOK, p.View())
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request, p *confirm.Page) {
	err := p.Confirm(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, p.View())
	case errors.Is(err, confirm.ErrInFlight), errors.Is(err, confirm.ErrNotCash),
		errors.Is(err, confirm.ErrNotLoaded), errors.Is(err, confirm.ErrDone):
		writeError(w, http.StatusConflict, err.Error(), p.View())
	default:
		s.log(r).Error("confirm booking", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", p.View())
	}
}

var upgrader = websocket.Upgrader{}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, p *confirm.Page) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log(r).Warn("ws upgrade", "error", err)
		return
	}
	views, cancel := p.Subscribe()
	defer cancel()
	if err := s.WSReg.Serve(r.Context(), p.ID(), conn, views); err != nil {
		s.log(r).Debug("ws stream ended", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
	View  any    `json:"view,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, view any) {
	writeJSON(w, status, errorResponse{Error: msg, View: view})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", nil)
		return false
	}
	return true
}

func newID() string { return uuid.NewString() }
