// Package gateway defines the contract with the hosted payment gateway and
// its Stripe Checkout implementation.
package gateway

import (
	"context"
	"errors"
)

// ErrUnavailable marks a gateway failure the caller may retry with a fresh checkout
var ErrUnavailable = errors.New("gateway: unavailable")

// ErrIgnoredEvent is returned for webhook events that carry no confirmation
var ErrIgnoredEvent = errors.New("gateway: event ignored")

// MaxDescriptionLength bounds CheckoutRequest.ShortDescription
const MaxDescriptionLength = 25

// CheckoutRequest asks the gateway for a hosted checkout bound to a reference
type CheckoutRequest struct {
	Amount            int64
	Currency          string
	ShortDescription  string
	ExternalReference string
	CustomerID        string
	SuccessURL        string
	CancelURL         string
}

// CheckoutSession is what the customer is redirected to
type CheckoutSession struct {
	SessionID         string
	CheckoutURL       string
	ExternalReference string
}

// Confirmation is the terminal outcome reported asynchronously by the gateway
type Confirmation struct {
	EventID           string
	ExternalReference string
	Outcome           string
}

// Gateway creates hosted checkouts
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// Disabled is used when no gateway credentials are configured
type Disabled struct{}

// CreateCheckout always fails with ErrUnavailable
func (Disabled) CreateCheckout(context.Context, CheckoutRequest) (CheckoutSession, error) {
	return CheckoutSession{}, errors.Join(ErrUnavailable, errors.New("gateway not configured"))
}

// ShortDescription truncates s to MaxDescriptionLength runes
func ShortDescription(s string) string {
	r := []rune(s)
	if len(r) <= MaxDescriptionLength {
		return s
	}
	return string(r[:MaxDescriptionLength])
}
