// Package form implements the trip-request form: airport and hotel
// resolution, the drop-off radius gate, date/time rules and submission.
//
// A Form belongs to one client. Its operations are serialized, and each
// one awaits its external calls in order before returning.
package form

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/transfer-booking/internal/catalog"
	"github.com/example/transfer-booking/internal/events"
	"github.com/example/transfer-booking/internal/models"
	"github.com/example/transfer-booking/internal/places"
	"github.com/example/transfer-booking/internal/routing"
)

// Rejection carries the user-facing message of a rejected operation.
type Rejection struct {
	Msg string
}

func (r *Rejection) Error() string { return r.Msg }

// IsRejection reports whether err is a user-facing validation failure.
func IsRejection(err error) bool {
	var r *Rejection
	return errors.As(err, &r)
}

// Backend is the part of the booking backend the form talks to.
type Backend interface {
	CreateDraft(ctx context.Context, tr models.TripRequest) (int, error)
	Cleanup(ctx context.Context) error
}

type Deps struct {
	Catalog *catalog.Catalog
	Places  places.Resolver
	Routing routing.Calculator
	Backend Backend
	Events  events.Publisher
	Logger  *slog.Logger
}

type Options struct {
	// Location is the time zone "today" is evaluated in.
	Location *time.Location
	// MinPrep is how far ahead a same-day pickup must be.
	MinPrep time.Duration
	// ConfirmRoute is where a successful submit navigates to.
	ConfirmRoute   string
	CleanupTimeout time.Duration
	Now            func() time.Time
	NewID          func() string
}

const (
	DefaultMinPrep      = 2 * time.Hour
	DefaultConfirmRoute = "/booking"
)

func (o *Options) setDefaults() {
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.MinPrep <= 0 {
		o.MinPrep = DefaultMinPrep
	}
	if o.ConfirmRoute == "" {
		o.ConfirmRoute = DefaultConfirmRoute
	}
	if o.CleanupTimeout <= 0 {
		o.CleanupTimeout = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
}

// FieldState is the validation state of a location field.
type FieldState string

const (
	StateEmpty    FieldState = "empty"
	StatePending  FieldState = "pending"
	StateInvalid  FieldState = "invalid"
	StateResolved FieldState = "resolved"
)

type LocationField struct {
	State    FieldState       `json:"state"`
	Input    string           `json:"input,omitempty"`
	Location *models.Location `json:"location,omitempty"`
}

func (f LocationField) resolved() bool {
	return f.State == StateResolved && f.Location != nil
}

type Form struct {
	mu   sync.Mutex
	deps Deps
	opts Options

	uuid       string
	pickup     LocationField
	dropOff    LocationField
	date       *time.Time
	hour       string
	passengers int
	message    string
	redirect   string

	cleanups sync.WaitGroup
}

// New mounts a form and generates its correlation id.
func New(deps Deps, opts Options) *Form {
	opts.setDefaults()
	if deps.Catalog == nil {
		deps.Catalog = catalog.New(nil)
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	f := &Form{
		deps:       deps,
		opts:       opts,
		uuid:       opts.NewID(),
		pickup:     LocationField{State: StateEmpty},
		dropOff:    LocationField{State: StateEmpty},
		passengers: models.MinPassengers,
	}
	f.deps.Logger = deps.Logger.With("form", f.uuid)
	return f
}

func (f *Form) UUID() string { return f.uuid }

func (f *Form) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// reject records msg in the message area and returns it as an error.
// Callers hold f.mu.
func (f *Form) reject(msg string) error {
	f.message = msg
	return &Rejection{Msg: msg}
}

// WaitCleanup blocks until fired cleanup calls have returned.
func (f *Form) WaitCleanup() { f.cleanups.Wait() }
