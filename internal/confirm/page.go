// Package confirm drives the booking confirmation page: it loads the
// booking once, derives the display price and runs the card or cash
// confirmation path.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/transfer-booking/internal/currency"
	"github.com/example/transfer-booking/internal/events"
	"github.com/example/transfer-booking/internal/models"
	"github.com/example/transfer-booking/internal/observability"
	"github.com/example/transfer-booking/internal/payments"
	"github.com/example/transfer-booking/internal/storage"
)

var (
	ErrNoOrder   = errors.New("no order id")
	ErrNotLoaded = errors.New("booking not loaded")
	ErrNotCash   = errors.New("booking is not a cash booking")
	ErrInFlight  = errors.New("confirmation already in flight")
	ErrDone      = errors.New("booking already confirmed")
)

// Phase is the page lifecycle: idle → loading → loaded | error.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseLoaded  Phase = "loaded"
	PhaseError   Phase = "error"
)

// Path is the payment branch, chosen once when the booking loads.
type Path string

const (
	PathCard Path = "card"
	PathCash Path = "cash"
)

const alreadyReserved = "You already reserved."

// Backend is the part of the booking backend the page talks to.
type Backend interface {
	GetBooking(ctx context.Context, uuid string) (*models.Booking, error)
	SendBookingMail(ctx context.Context, b *models.Booking, price *int64, symbol string) error
	UpdatePaymentStatus(ctx context.Context, uuid, status string) error
}

type Deps struct {
	Backend  Backend
	Currency currency.Converter
	Ledger   storage.Ledger
	// Payments is optional. When set, a card booking carrying a payment
	// intent is confirmed only once the intent has succeeded.
	Payments payments.Verifier
	Events   events.Publisher
	Logger   *slog.Logger
}

type Options struct {
	// AutoRedirect starts the countdown to HomeRoute after a card
	// confirmation.
	AutoRedirect bool
	Countdown    int
	Tick         time.Duration
	HomeRoute    string
	// Currency is the initially active currency code.
	Currency string
	NewID    func() string
}

func (o *Options) setDefaults() {
	if o.Countdown <= 0 {
		o.Countdown = 5
	}
	if o.Tick <= 0 {
		o.Tick = time.Second
	}
	if o.HomeRoute == "" {
		o.HomeRoute = "/"
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
}

// OrderID returns the booking id from a page query; "order" wins over
// "uuid".
func OrderID(q url.Values) string {
	if v := q.Get("order"); v != "" {
		return v
	}
	return q.Get("uuid")
}

// Page is one load of the confirmation page. State changes are guarded by
// mu; backend calls run outside it so readers never wait on the network.
type Page struct {
	mu   sync.Mutex
	deps Deps
	opts Options

	id       string
	orderID  string
	phase    Phase
	booking  *models.Booking
	path     Path
	currency string
	price    *int64
	symbol   string
	// priceSeq numbers price refreshes; only a refresh newer than
	// priceApplied may overwrite the price.
	priceSeq     uint64
	priceApplied uint64

	// cardFired latches the automatic card confirmation per page load.
	cardFired bool
	sending   bool
	countdown int
	notice    string
	failure   string
	redirect  string

	subs   map[chan View]struct{}
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

func New(deps Deps, opts Options, orderID string) *Page {
	opts.setDefaults()
	if deps.Currency == nil {
		deps.Currency = currency.NewRateTable("EUR", nil)
	}
	if deps.Ledger == nil {
		deps.Ledger = storage.NewMemoryLedger()
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	p := &Page{
		deps:     deps,
		opts:     opts,
		id:       opts.NewID(),
		orderID:  orderID,
		phase:    PhaseIdle,
		currency: opts.Currency,
		symbol:   deps.Currency.Symbol(opts.Currency),
		subs:     make(map[chan View]struct{}),
		done:     make(chan struct{}),
	}
	p.deps.Logger = deps.Logger.With("page", p.id, "order", orderID)
	return p
}

func (p *Page) ID() string { return p.id }

// Load fetches the booking once and starts the chosen path. Later calls
// are no-ops. A failed fetch leaves the page in PhaseError.
func (p *Page) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.orderID == "" {
		p.mu.Unlock()
		return ErrNoOrder
	}
	if p.phase != PhaseIdle {
		p.mu.Unlock()
		return nil
	}
	p.phase = PhaseLoading
	p.notifyLocked()
	p.mu.Unlock()

	b, err := p.deps.Backend.GetBooking(ctx, p.orderID)
	if err != nil {
		p.deps.Logger.Error("fetch booking", "error", err)
		p.mu.Lock()
		p.phase = PhaseError
		p.failure = "We could not load your booking."
		p.notifyLocked()
		p.mu.Unlock()
		return fmt.Errorf("load booking %s: %w", p.orderID, err)
	}

	p.mu.Lock()
	p.booking = b
	p.path = choosePath(b)
	p.phase = PhaseLoaded
	if b.Status == models.StatusAccepted {
		p.notice = alreadyReserved
		p.redirect = p.opts.HomeRoute
		p.notifyLocked()
		p.mu.Unlock()
		observability.Confirmations.WithLabelValues(string(p.path), "already_accepted").Inc()
		return nil
	}
	code := p.currency
	p.priceSeq++
	seq := p.priceSeq
	p.mu.Unlock()

	if err := p.refreshPrice(ctx, b, code, seq); err != nil {
		p.deps.Logger.Warn("derive price", "currency", code, "error", err)
	}
	p.maybeConfirmCard(ctx)
	return nil
}

func choosePath(b *models.Booking) Path {
	if b.Status == models.StatusPaid || b.PaymentMethod == models.PaymentCard {
		return PathCard
	}
	return PathCash
}

// SetCurrency switches the active currency and recomputes the price. An
// unsupported code leaves the page unchanged. When refreshes overlap the
// most recently requested currency wins.
func (p *Page) SetCurrency(ctx context.Context, code string) error {
	if _, err := p.deps.Currency.Convert(ctx, 0, code); err != nil {
		return fmt.Errorf("convert price: %w", err)
	}

	p.mu.Lock()
	b := p.booking
	if b == nil {
		p.currency = code
		p.symbol = p.deps.Currency.Symbol(code)
		p.notifyLocked()
		p.mu.Unlock()
		return nil
	}
	p.priceSeq++
	seq := p.priceSeq
	p.mu.Unlock()

	if err := p.refreshPrice(ctx, b, code, seq); err != nil {
		return err
	}
	p.maybeConfirmCard(ctx)
	return nil
}

// refreshPrice converts the booking's base price into code, rounded to a
// whole unit. A missing or zero base price leaves the price unset. The
// result is dropped if a newer refresh already landed.
func (p *Page) refreshPrice(ctx context.Context, b *models.Booking, code string, seq uint64) error {
	var price *int64
	if base, ok := b.BasePrice(); ok && base != 0 {
		converted, err := p.deps.Currency.Convert(ctx, base, code)
		if err != nil {
			return fmt.Errorf("convert price: %w", err)
		}
		r := int64(math.Round(converted))
		price = &r
	} else if _, err := p.deps.Currency.Convert(ctx, 0, code); err != nil {
		return fmt.Errorf("convert price: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if seq <= p.priceApplied {
		return nil
	}
	p.priceApplied = seq
	p.currency = code
	p.symbol = p.deps.Currency.Symbol(code)
	p.price = price
	p.notifyLocked()
	return nil
}

// maybeConfirmCard sends the card confirmation at most once per page
// load, as soon as the booking and a non-zero price are both known.
func (p *Page) maybeConfirmCard(ctx context.Context) {
	p.mu.Lock()
	if p.path != PathCard || p.cardFired || p.redirect != "" || p.price == nil || *p.price == 0 {
		p.mu.Unlock()
		return
	}
	p.cardFired = true
	b := p.booking
	price := *p.price
	symbol := p.symbol
	p.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	log := p.deps.Logger.With("path", PathCard)

	if p.deps.Payments != nil && b.PaymentIntentID != "" {
		if err := p.deps.Payments.Verify(ctx, b.PaymentIntentID); err != nil {
			log.Error("verify card payment", "payment_intent", b.PaymentIntentID, "error", err)
			observability.Confirmations.WithLabelValues(string(PathCard), "unverified").Inc()
			p.mu.Lock()
			p.phase = PhaseError
			p.failure = "We could not verify your card payment."
			p.notifyLocked()
			p.mu.Unlock()
			return
		}
	}

	if !p.claim(ctx, b.UUID) {
		p.mu.Lock()
		p.notice = alreadyReserved
		p.redirect = p.opts.HomeRoute
		p.notifyLocked()
		p.mu.Unlock()
		return
	}

	if p.send(ctx, log, b, &price, symbol) {
		log.Info("auto confirmation email sent")
	}
	if p.opts.AutoRedirect {
		p.startCountdown()
	}
}

// Confirm runs the manual cash confirmation: mail, then status accepted,
// then redirect home. Failures are logged and the redirect still happens.
func (p *Page) Confirm(ctx context.Context) error {
	p.mu.Lock()
	switch {
	case p.phase != PhaseLoaded:
		p.mu.Unlock()
		return ErrNotLoaded
	case p.path != PathCash:
		p.mu.Unlock()
		return ErrNotCash
	case p.redirect != "":
		p.mu.Unlock()
		return ErrDone
	case p.sending:
		p.mu.Unlock()
		return ErrInFlight
	}
	p.sending = true
	b := p.booking
	var price *int64
	if p.price != nil {
		v := *p.price
		price = &v
	}
	symbol := p.symbol
	p.notifyLocked()
	p.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	claimed := p.claim(ctx, b.UUID)
	if claimed {
		p.send(ctx, p.deps.Logger.With("path", PathCash), b, price, symbol)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sending = false
	if !claimed {
		p.notice = alreadyReserved
	}
	p.redirect = p.opts.HomeRoute
	p.notifyLocked()
	return nil
}

// claim records the confirmation in the ledger. A ledger failure is
// logged and treated as a win so the customer still gets the mail.
func (p *Page) claim(ctx context.Context, bookingID string) bool {
	ok, err := p.deps.Ledger.Claim(ctx, bookingID)
	if err != nil {
		p.deps.Logger.Warn("claim confirmation", "error", err)
		return true
	}
	if !ok {
		p.deps.Logger.Info("confirmation already claimed")
		observability.Confirmations.WithLabelValues(string(p.pathSnapshot()), "duplicate").Inc()
	}
	return ok
}

// send mails the confirmation and marks the booking accepted. When the
// mail fails the status update is skipped and the claim is released, so
// the next page load tries again.
func (p *Page) send(ctx context.Context, log *slog.Logger, b *models.Booking, price *int64, symbol string) bool {
	path := string(p.pathSnapshot())
	if err := p.deps.Backend.SendBookingMail(ctx, b, price, symbol); err != nil {
		log.Error("send confirmation mail", "error", err)
		observability.Confirmations.WithLabelValues(path, "mail_error").Inc()
		if err := p.deps.Ledger.Release(ctx, b.UUID); err != nil {
			log.Warn("release confirmation", "error", err)
		}
		return false
	}
	p.publish(ctx, models.EventConfirmationSent, "")

	if err := p.deps.Backend.UpdatePaymentStatus(ctx, b.UUID, models.StatusAccepted); err != nil {
		log.Error("update payment status", "error", err)
		observability.Confirmations.WithLabelValues(path, "status_error").Inc()
		return true
	}
	p.publish(ctx, models.EventAccepted, models.StatusAccepted)
	observability.Confirmations.WithLabelValues(path, "sent").Inc()
	return true
}

func (p *Page) publish(ctx context.Context, typ, status string) {
	ev := models.BookingEvent{Type: typ, UUID: p.orderID, Status: status}
	if err := p.deps.Events.Publish(ctx, ev); err != nil {
		p.deps.Logger.Warn("publish booking event", "type", typ, "error", err)
	}
}

func (p *Page) pathSnapshot() Path {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.path
}

func (p *Page) startCountdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.countdown = p.opts.Countdown
	p.notifyLocked()
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		t := time.NewTicker(p.opts.Tick)
		defer t.Stop()
		for {
			select {
			case <-p.done:
				return
			case <-t.C:
				p.mu.Lock()
				p.countdown--
				if p.countdown <= 0 {
					p.countdown = 0
					p.redirect = p.opts.HomeRoute
				}
				finished := p.redirect != ""
				p.notifyLocked()
				p.mu.Unlock()
				if finished {
					return
				}
			}
		}
	}()
}

// Subscribe streams view snapshots, starting with the current one. The
// channel is closed by cancel or when the page closes. Slow readers miss
// intermediate snapshots but always receive the latest one.
func (p *Page) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 16)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	p.subs[ch] = struct{}{}
	ch <- p.viewLocked()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if _, ok := p.subs[ch]; ok {
				delete(p.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

func (p *Page) notifyLocked() {
	if len(p.subs) == 0 {
		return
	}
	v := p.viewLocked()
	for ch := range p.subs {
		select {
		case ch <- v:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

// Close stops the countdown and ends all subscriptions.
func (p *Page) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	for ch := range p.subs {
		delete(p.subs, ch)
		close(ch)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
