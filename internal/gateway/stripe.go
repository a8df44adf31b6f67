package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

const referenceMetadataKey = "external_reference"

type stripeSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeConfig configures the Stripe gateway
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Backends      *stripe.Backends
	Sessions      stripeSessionAPI
}

// Stripe implements Gateway with Stripe Checkout
type Stripe struct {
	sessions      stripeSessionAPI
	webhookSecret string
}

// NewStripe constructs the Stripe gateway
func NewStripe(cfg StripeConfig) (*Stripe, error) {
	sessions := cfg.Sessions
	if sessions == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("stripe: api key is required")
		}
		sessions = client.New(apiKey, cfg.Backends).CheckoutSessions
	}

	return &Stripe{
		sessions:      sessions,
		webhookSecret: cfg.WebhookSecret,
	}, nil
}

// CreateCheckout creates a Checkout session whose client reference is the
// payment's external reference. Every failure is reported as ErrUnavailable.
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error) {
	if req.ExternalReference == "" {
		return CheckoutSession{}, errors.New("stripe: external reference is required")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
		ClientReferenceID: stripe.String(req.ExternalReference),
		Metadata:          map[string]string{referenceMetadataKey: req.ExternalReference},
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(ShortDescription(req.ShortDescription)),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{referenceMetadataKey: req.ExternalReference},
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.ExternalReference)

	session, err := s.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("%w: stripe: create checkout session: %v", ErrUnavailable, err)
	}

	return CheckoutSession{
		SessionID:         session.ID,
		CheckoutURL:       session.URL,
		ExternalReference: req.ExternalReference,
	}, nil
}

// ParseWebhook verifies a Stripe webhook delivery and maps it to a
// Confirmation. Events that do not settle a checkout return ErrIgnoredEvent.
func (s *Stripe) ParseWebhook(payload []byte, signature string) (Confirmation, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Confirmation{}, fmt.Errorf("stripe: verify webhook: %w", err)
	}

	var outcome string
	switch string(event.Type) {
	case "checkout.session.completed":
		outcome = models.OutcomePaid
	case "checkout.session.async_payment_succeeded":
		outcome = models.OutcomePaid
	case "checkout.session.async_payment_failed", "checkout.session.expired":
		outcome = models.OutcomeFailed
	default:
		return Confirmation{}, ErrIgnoredEvent
	}

	if event.Data == nil {
		return Confirmation{}, errors.New("stripe: webhook event has no data")
	}
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return Confirmation{}, fmt.Errorf("stripe: decode checkout session: %w", err)
	}

	// completed with an async method still pending settles later
	if string(event.Type) == "checkout.session.completed" &&
		session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return Confirmation{}, ErrIgnoredEvent
	}

	ref := session.ClientReferenceID
	if ref == "" {
		ref = session.Metadata[referenceMetadataKey]
	}
	if ref == "" {
		return Confirmation{}, errors.New("stripe: checkout session has no external reference")
	}

	return Confirmation{
		EventID:           event.ID,
		ExternalReference: ref,
		Outcome:           outcome,
	}, nil
}
