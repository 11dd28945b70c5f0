package payments

import (
	"context"
	"errors"
	"fmt"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// ErrNotSettled is returned when a card payment has not succeeded.
var ErrNotSettled = errors.New("payment not settled")

// Verifier checks that a card booking's PaymentIntent went through before
// its confirmation is sent automatically.
type Verifier interface {
	Verify(ctx context.Context, paymentIntentID string) error
}

// StripeVerifier is a thin wrapper around stripe-go PaymentIntent lookups.
type StripeVerifier struct {
	get func(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// NewStripeVerifier initializes the stripe client with the given key.
func NewStripeVerifier(apiKey string) *StripeVerifier {
	stripe.Key = apiKey
	return &StripeVerifier{get: paymentintent.Get}
}

func (s *StripeVerifier) Verify(ctx context.Context, paymentIntentID string) error {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.get(paymentIntentID, params)
	if err != nil {
		return fmt.Errorf("retrieve payment intent %s: %w", paymentIntentID, err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("%w: intent %s is %s", ErrNotSettled, paymentIntentID, pi.Status)
	}
	return nil
}
