package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// CheckoutConfig tunes checkout initiation
type CheckoutConfig struct {
	Currency       string
	SuccessURL     string
	CancelURL      string
	GatewayTimeout time.Duration
	Shipping       ShippingRates
}

// CheckoutService creates payments and orders for both checkout paths and
// applies gateway confirmations.
type CheckoutService struct {
	payments PaymentRepository
	carts    CartRepository
	catalog  ProductCatalog
	gateway  gateway.Gateway
	sequence Sequencer
	events   EventPublisher
	cfg      CheckoutConfig
	validate *validator.Validate
	policy   *bluemonday.Policy
	logger   *zap.Logger
	now      func() time.Time
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	payments PaymentRepository,
	carts CartRepository,
	catalog ProductCatalog,
	gw gateway.Gateway,
	sequence Sequencer,
	events EventPublisher,
	cfg CheckoutConfig,
) *CheckoutService {
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	return &CheckoutService{
		payments: payments,
		carts:    carts,
		catalog:  catalog,
		gateway:  gw,
		sequence: sequence,
		events:   events,
		cfg:      cfg,
		validate: validator.New(),
		policy:   bluemonday.StrictPolicy(),
		logger:   util.GetLogger(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CheckoutRequest is the input to both checkout paths. When Items is empty the
// customer's server cart is used.
type CheckoutRequest struct {
	CustomerID      string                 `json:"-"`
	Items           []models.CartLine      `json:"items"`
	ShippingAddress models.ShippingAddress `json:"shipping_address"`
	ShippingMethod  string                 `json:"shipping_method"`
}

// GatewayCheckout is returned by InitiateGatewayCheckout
type GatewayCheckout struct {
	CheckoutURL       string `json:"checkout_url"`
	ExternalReference string `json:"external_reference"`
	PaymentID         int64  `json:"payment_id"`
	Amount            int64  `json:"amount"`
}

// PlacedOrder is returned by PlaceCODOrder
type PlacedOrder struct {
	Order   *models.Order      `json:"order"`
	Items   []models.OrderItem `json:"items"`
	Payment *models.Payment    `json:"payment"`
}

// ConfirmationResult reports what HandleConfirmation did
type ConfirmationResult struct {
	Payment *models.Payment `json:"payment"`
	Order   *models.Order   `json:"order,omitempty"`
	// Duplicate is set when the payment was already terminal
	Duplicate bool `json:"duplicate"`
}

// InitiateGatewayCheckout prices the cart, records a PENDING gateway payment
// and asks the gateway for a redirect URL. No order is created here.
func (s *CheckoutService) InitiateGatewayCheckout(ctx context.Context, req *CheckoutRequest) (*GatewayCheckout, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.InitiateGatewayCheckout",
		attribute.String("customer_id", req.CustomerID))
	defer span.End()

	priced, err := s.prepare(ctx, req, false)
	if err != nil {
		if reason, ok := rejectReason(err); ok {
			util.CheckoutsRejectedTotal.WithLabelValues(reason).Inc()
		} else {
			util.RecordError(span, err)
		}
		return nil, err
	}

	payment := &models.Payment{
		ExternalReference: newReference("GW"),
		Method:            models.PaymentMethodGateway,
		Amount:            priced.amount,
		Status:            models.PaymentStatusPending,
		CustomerID:        req.CustomerID,
		Checkout:          priced.snapshot,
	}
	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	util.CheckoutsInitiatedTotal.WithLabelValues(models.PaymentMethodGateway).Inc()

	gwCtx, cancel := context.WithTimeout(ctx, s.cfg.GatewayTimeout)
	defer cancel()

	start := time.Now()
	session, err := s.gateway.CreateCheckout(gwCtx, gateway.CheckoutRequest{
		Amount:            payment.Amount,
		Currency:          s.cfg.Currency,
		ShortDescription:  gateway.ShortDescription("Order " + payment.ExternalReference),
		ExternalReference: payment.ExternalReference,
		CustomerID:        req.CustomerID,
		SuccessURL:        s.cfg.SuccessURL,
		CancelURL:         s.cfg.CancelURL,
	})
	util.GatewayLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		util.GatewayErrorsTotal.Inc()
		util.RecordError(span, err)
		s.logger.Warn("Gateway checkout failed, payment abandoned",
			zap.Int64("payment_id", payment.ID),
			zap.String("external_reference", payment.ExternalReference),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	s.logger.Info("Gateway checkout initiated",
		zap.Int64("payment_id", payment.ID),
		zap.String("external_reference", payment.ExternalReference),
		zap.Int64("amount", payment.Amount))

	return &GatewayCheckout{
		CheckoutURL:       session.CheckoutURL,
		ExternalReference: payment.ExternalReference,
		PaymentID:         payment.ID,
		Amount:            payment.Amount,
	}, nil
}

// PlaceCODOrder creates a PENDING COD payment and its ORDERED order atomically
func (s *CheckoutService) PlaceCODOrder(ctx context.Context, req *CheckoutRequest) (*PlacedOrder, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.PlaceCODOrder",
		attribute.String("customer_id", req.CustomerID))
	defer span.End()

	priced, err := s.prepare(ctx, req, true)
	if err != nil {
		if reason, ok := rejectReason(err); ok {
			util.CheckoutsRejectedTotal.WithLabelValues(reason).Inc()
		} else {
			util.RecordError(span, err)
		}
		return nil, err
	}

	orderNumber, err := s.nextOrderNumber(ctx)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	payment := &models.Payment{
		ExternalReference: newReference("COD"),
		Method:            models.PaymentMethodCOD,
		Amount:            priced.amount,
		Status:            models.PaymentStatusPending,
		CustomerID:        req.CustomerID,
		Checkout:          priced.snapshot,
	}
	order := &models.Order{
		OrderNumber:     orderNumber,
		CustomerID:      req.CustomerID,
		Status:          models.OrderStatusOrdered,
		TotalAmount:     subtotal(priced.snapshot.Lines),
		ShippingAddress: models.AddressSnapshot(*priced.snapshot.ShippingAddress),
	}
	items := orderItemsFrom(priced.snapshot.Lines)

	if err := s.payments.CreateOrderWithPayment(ctx, payment, order, items, req.CustomerID); err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to place COD order: %w", err)
	}

	util.CheckoutsInitiatedTotal.WithLabelValues(models.PaymentMethodCOD).Inc()
	util.OrdersCreatedTotal.WithLabelValues(models.PaymentMethodCOD).Inc()
	s.logger.Info("COD order placed",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("payment_id", payment.ID))

	s.publishOrderCreated(ctx, order, payment, items)
	return &PlacedOrder{Order: order, Items: items, Payment: payment}, nil
}

// HandleConfirmation applies a gateway outcome to the payment bound to ref.
// On PAID the deferred order is created from the checkout snapshot. Already
// settled payments are left untouched.
func (s *CheckoutService) HandleConfirmation(ctx context.Context, ref, outcome string) (*ConfirmationResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.HandleConfirmation",
		attribute.String("external_reference", ref),
		attribute.String("outcome", outcome))
	defer span.End()

	if outcome != models.OutcomePaid && outcome != models.OutcomeFailed {
		return nil, invalid("outcome", fmt.Sprintf("unknown outcome %q", outcome))
	}

	payment, err := s.payments.GetPaymentByExternalReference(ctx, ref)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("payment %s: %w", ref, ErrPaymentNotFound)
		}
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment.Method != models.PaymentMethodGateway {
		return nil, invalid("external_reference", "payment is not a gateway payment")
	}
	if models.IsTerminalPaymentStatus(payment.Status) {
		s.logger.Info("Payment already settled, confirmation ignored",
			zap.String("external_reference", ref),
			zap.String("status", payment.Status))
		return &ConfirmationResult{Payment: payment, Duplicate: true}, nil
	}

	if outcome == models.OutcomeFailed {
		if err := s.payments.SettlePayment(ctx, payment.ID, models.PaymentStatusFailed); err != nil {
			if errors.Is(err, store.ErrPaymentNotPending) {
				return &ConfirmationResult{Payment: payment, Duplicate: true}, nil
			}
			util.RecordError(span, err)
			return nil, fmt.Errorf("failed to mark payment failed: %w", err)
		}
		payment.Status = models.PaymentStatusFailed
		util.PaymentConfirmationsTotal.WithLabelValues(models.OutcomeFailed).Inc()
		s.logger.Info("Gateway payment failed", zap.String("external_reference", ref))
		return &ConfirmationResult{Payment: payment}, nil
	}

	snapshot := payment.Checkout
	if len(snapshot.Lines) == 0 {
		return nil, fmt.Errorf("payment %s has no checkout snapshot", ref)
	}

	orderNumber, err := s.nextOrderNumber(ctx)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	order := &models.Order{
		OrderNumber: orderNumber,
		CustomerID:  payment.CustomerID,
		Status:      models.OrderStatusOrdered,
		TotalAmount: subtotal(snapshot.Lines),
	}
	if snapshot.ShippingAddress != nil {
		order.ShippingAddress = models.AddressSnapshot(*snapshot.ShippingAddress)
	}
	items := orderItemsFrom(snapshot.Lines)

	if err := s.payments.ConfirmPaymentAndCreateOrder(ctx, payment.ID, order, items, payment.CustomerID); err != nil {
		if errors.Is(err, store.ErrPaymentNotPending) {
			return &ConfirmationResult{Payment: payment, Duplicate: true}, nil
		}
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to create confirmed order: %w", err)
	}
	payment.Status = models.PaymentStatusPaid

	util.PaymentConfirmationsTotal.WithLabelValues(models.OutcomePaid).Inc()
	util.OrdersCreatedTotal.WithLabelValues(models.PaymentMethodGateway).Inc()
	s.logger.Info("Gateway payment confirmed, order created",
		zap.String("external_reference", ref),
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber))

	s.publishOrderCreated(ctx, order, payment, items)
	return &ConfirmationResult{Payment: payment, Order: order}, nil
}

type pricedCheckout struct {
	snapshot models.CheckoutSnapshot
	amount   int64
}

// cartLines returns the customer's server cart as checkout lines. Lines
// whose product is no longer offered are left out, matching GetCart.
func (s *CheckoutService) cartLines(ctx context.Context, customerID string) ([]models.CartLine, error) {
	cart, err := s.carts.ListCartItems(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cart) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(cart))
	for _, it := range cart {
		ids = append(ids, it.ProductID)
	}
	offered, err := availableProducts(ctx, s.catalog, ids)
	if err != nil {
		return nil, err
	}

	lines := make([]models.CartLine, 0, len(cart))
	for _, it := range cart {
		if _, ok := offered[it.ProductID]; !ok {
			s.logger.Warn("Skipping unavailable cart line at checkout",
				zap.String("customer_id", customerID),
				zap.Int64("product_id", it.ProductID))
			continue
		}
		lines = append(lines, models.CartLine{ProductID: it.ProductID, Quantity: it.Quantity, Size: it.Size})
	}
	return lines, nil
}

// rejectReason labels a prepare failure for CheckoutsRejectedTotal. Store
// and catalog outages are not rejections and get no label.
func rejectReason(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation", true
	case errors.Is(err, ErrForbidden):
		return "unauthenticated", true
	default:
		return "", false
	}
}

// prepare resolves items, prices and the address snapshot. Nothing is
// persisted, so every error here leaves no state behind.
func (s *CheckoutService) prepare(ctx context.Context, req *CheckoutRequest, requireAddress bool) (*pricedCheckout, error) {
	if req.CustomerID == "" {
		return nil, fmt.Errorf("checkout requires an authenticated customer: %w", ErrForbidden)
	}

	address := s.sanitizeAddress(req.ShippingAddress)
	if requireAddress {
		if err := s.validateAddress(address); err != nil {
			return nil, err
		}
	}

	method := NormalizeShippingMethod(req.ShippingMethod)
	shippingCost, err := s.cfg.Shipping.Cost(method)
	if err != nil {
		return nil, err
	}

	lines := req.Items
	if len(lines) == 0 {
		if lines, err = s.cartLines(ctx, req.CustomerID); err != nil {
			return nil, err
		}
	}

	priced, err := priceLines(ctx, s.catalog, lines)
	if err != nil {
		return nil, err
	}

	return &pricedCheckout{
		snapshot: models.CheckoutSnapshot{
			Lines:           priced,
			ShippingAddress: &address,
			ShippingMethod:  method,
			ShippingCost:    shippingCost,
		},
		amount: subtotal(priced) + shippingCost,
	}, nil
}

func (s *CheckoutService) sanitizeAddress(a models.ShippingAddress) models.ShippingAddress {
	clean := func(v string) string {
		// strip markup, keep entities such as & as plain text
		return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(v)))
	}
	return models.ShippingAddress{
		FirstName:  clean(a.FirstName),
		LastName:   clean(a.LastName),
		Street:     clean(a.Street),
		City:       clean(a.City),
		PostalCode: clean(a.PostalCode),
	}
}

func (s *CheckoutService) validateAddress(a models.ShippingAddress) error {
	err := s.validate.Struct(a)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	verr := &ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields["shipping_address."+jsonFieldName(fe.Field())] = fe.Tag()
	}
	return verr
}

func (s *CheckoutService) nextOrderNumber(ctx context.Context) (string, error) {
	day := s.now().Format("20060102")
	n, err := s.sequence.Next(ctx, "order:"+day)
	if err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return fmt.Sprintf("SF-%s-%06d", day, n), nil
}

func (s *CheckoutService) publishOrderCreated(ctx context.Context, order *models.Order, payment *models.Payment, items []models.OrderItem) {
	if s.events == nil {
		return
	}
	event := &models.OrderCreatedEvent{
		BaseEvent:   newBaseEvent(models.EventTypeOrderCreated, s.now()),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		CustomerID:  order.CustomerID,
		PaymentID:   payment.ID,
		Method:      payment.Method,
		TotalAmount: order.TotalAmount,
		Items:       orderItemData(items),
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}
}

func newReference(prefix string) string {
	return prefix + "-" + ulid.Make().String()
}

func jsonFieldName(field string) string {
	switch field {
	case "FirstName":
		return "first_name"
	case "LastName":
		return "last_name"
	case "PostalCode":
		return "postal_code"
	default:
		return strings.ToLower(field)
	}
}
