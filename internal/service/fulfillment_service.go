package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Progress is the customer-facing timeline position of an order
type Progress struct {
	Step      int  `json:"step"`
	Cancelled bool `json:"cancelled"`
}

// LastProgressStep is the step index of a delivered order
const LastProgressStep = 4

var progressSteps = map[string]int{
	models.OrderStatusOrdered:    0,
	models.OrderStatusConfirmed:  1,
	models.OrderStatusProcessing: 2,
	models.OrderStatusShipped:    3,
	models.OrderStatusDelivered:  LastProgressStep,
}

// ProjectProgress maps a stored order status to a step 0..LastProgressStep. An ORDERED
// order whose payment is PAID displays past CONFIRMED. CANCELLED has no step.
func ProjectProgress(orderStatus, paymentStatus string) Progress {
	if orderStatus == models.OrderStatusCancelled {
		return Progress{Step: -1, Cancelled: true}
	}
	step := progressSteps[orderStatus]
	if orderStatus == models.OrderStatusOrdered && paymentStatus == models.PaymentStatusPaid {
		step = progressSteps[models.OrderStatusProcessing]
	}
	return Progress{Step: step}
}

// IsForwardTransition reports whether to follows from in normal fulfillment.
// Administrators may still set any status; this only classifies the change.
func IsForwardTransition(from, to string) bool {
	if models.IsTerminalOrderStatus(from) {
		return false
	}
	if to == models.OrderStatusCancelled {
		return true
	}
	fromStep, ok1 := progressSteps[from]
	toStep, ok2 := progressSteps[to]
	return ok1 && ok2 && toStep > fromStep
}

// OrderView is an order with everything an operator or customer sees
type OrderView struct {
	Order    *models.Order      `json:"order"`
	Items    []models.OrderItem `json:"items"`
	Payment  *models.Payment    `json:"payment"`
	Progress Progress           `json:"progress"`
	// AmountDiscrepancy is payment amount minus order total. It is expected
	// to be non-zero when shipping was charged or a payment covers several
	// orders and is never corrected.
	AmountDiscrepancy int64 `json:"amount_discrepancy"`
	LinkedOrders      int   `json:"linked_orders"`
}

// BulkFailure is one order a bulk update could not change
type BulkFailure struct {
	OrderID int64  `json:"order_id"`
	Error   string `json:"error"`
}

// BulkResult reports a bulk status update. Partial success is normal.
type BulkResult struct {
	Requested    int           `json:"requested"`
	SuccessCount int           `json:"success_count"`
	Failures     []BulkFailure `json:"failures"`
}

// FulfillmentService drives administrator order status changes
type FulfillmentService struct {
	orders      OrderRepository
	payments    PaymentRepository
	events      EventPublisher
	concurrency int
	logger      *zap.Logger
	now         func() time.Time
}

// NewFulfillmentService creates a new fulfillment service
func NewFulfillmentService(orders OrderRepository, payments PaymentRepository, events EventPublisher, concurrency int) *FulfillmentService {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &FulfillmentService{
		orders:      orders,
		payments:    payments,
		events:      events,
		concurrency: concurrency,
		logger:      util.GetLogger(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetOrderStatus stores newStatus on the order and returns the stored row.
// Last write wins. Delivering a COD order settles its pending payment.
func (s *FulfillmentService) SetOrderStatus(ctx context.Context, orderID int64, newStatus string) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.SetOrderStatus",
		attribute.Int64("order_id", orderID),
		attribute.String("status", newStatus))
	defer span.End()

	if !models.IsValidOrderStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	current, err := s.getOrder(ctx, orderID)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	if current.Status != newStatus && !IsForwardTransition(current.Status, newStatus) {
		s.logger.Warn("Non-forward order status change",
			zap.Int64("order_id", orderID),
			zap.String("from", current.Status),
			zap.String("to", newStatus))
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, orderID, newStatus)
	if err != nil {
		util.RecordError(span, err)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}
	util.OrderStatusUpdatesTotal.WithLabelValues(newStatus).Inc()

	if newStatus == models.OrderStatusDelivered {
		s.settleCashOnDelivery(ctx, updated)
	}

	s.logger.Info("Order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", current.Status),
		zap.String("to", newStatus))

	if s.events != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent:      newBaseEvent(models.EventTypeOrderStatusChanged, s.now()),
			OrderID:        orderID,
			PreviousStatus: current.Status,
			Status:         newStatus,
		}
		if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Error(err))
		}
	}

	return updated, nil
}

// SetOrderStatusBulk issues one independent SetOrderStatus per id
// concurrently. It is not transactional; failed orders keep their prior status.
func (s *FulfillmentService) SetOrderStatusBulk(ctx context.Context, orderIDs []int64, newStatus string) (*BulkResult, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.SetOrderStatusBulk",
		attribute.Int("orders", len(orderIDs)),
		attribute.String("status", newStatus))
	defer span.End()

	if !models.IsValidOrderStatus(newStatus) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, newStatus)
	}

	errs := make([]error, len(orderIDs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, id := range orderIDs {
		i, id := i, id
		g.Go(func() error {
			_, errs[i] = s.SetOrderStatus(ctx, id, newStatus)
			return nil
		})
	}
	_ = g.Wait()

	result := &BulkResult{Requested: len(orderIDs), Failures: []BulkFailure{}}
	for i, err := range errs {
		if err == nil {
			result.SuccessCount++
			continue
		}
		result.Failures = append(result.Failures, BulkFailure{OrderID: orderIDs[i], Error: err.Error()})
	}
	if len(result.Failures) > 0 {
		util.BulkUpdateFailuresTotal.Add(float64(len(result.Failures)))
	}

	s.logger.Info("Bulk order status update finished",
		zap.String("status", newStatus),
		zap.Int("requested", result.Requested),
		zap.Int("succeeded", result.SuccessCount))
	return result, nil
}

// DeleteOrder hard-deletes an order. The linked payment is never removed.
func (s *FulfillmentService) DeleteOrder(ctx context.Context, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.DeleteOrder",
		attribute.Int64("order_id", orderID))
	defer span.End()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		util.RecordError(span, err)
		return err
	}

	if err := s.orders.DeleteOrder(ctx, orderID); err != nil {
		util.RecordError(span, err)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
		}
		return fmt.Errorf("failed to delete order: %w", err)
	}
	util.OrdersDeletedTotal.Inc()
	s.logger.Info("Order deleted",
		zap.Int64("order_id", orderID),
		zap.Int64("payment_id", order.PaymentID))

	if s.events != nil {
		event := &models.OrderDeletedEvent{
			BaseEvent: newBaseEvent(models.EventTypeOrderDeleted, s.now()),
			OrderID:   orderID,
			PaymentID: order.PaymentID,
		}
		if err := s.events.PublishOrderDeleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderDeleted event", zap.Error(err))
		}
	}
	return nil
}

// GetOrder returns the order with items, payment, progress and discrepancy
func (s *FulfillmentService) GetOrder(ctx context.Context, orderID int64) (*OrderView, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.GetOrder",
		attribute.Int64("order_id", orderID))
	defer span.End()

	order, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	items, err := s.orders.GetOrderItemsByOrderID(ctx, orderID)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}

	view := &OrderView{Order: order, Items: items}

	payment, err := s.payments.GetPaymentByID(ctx, order.PaymentID)
	switch {
	case err == nil:
		view.Payment = payment
		view.AmountDiscrepancy = payment.Amount - order.TotalAmount
		view.Progress = ProjectProgress(order.Status, payment.Status)
	case errors.Is(err, store.ErrNotFound):
		view.Progress = ProjectProgress(order.Status, "")
	default:
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}

	linked, err := s.OrdersForPayment(ctx, order.PaymentID)
	if err != nil {
		return nil, err
	}
	view.LinkedOrders = len(linked)

	return view, nil
}

// ListOrders returns orders for administrators, newest first
func (s *FulfillmentService) ListOrders(ctx context.Context, filter store.OrderListFilter) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.ListOrders")
	defer span.End()

	if filter.Status != "" && !models.IsValidOrderStatus(filter.Status) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, filter.Status)
	}
	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListCustomerOrders returns one customer's orders, newest first
func (s *FulfillmentService) ListCustomerOrders(ctx context.Context, customerID string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.ListCustomerOrders")
	defer span.End()

	orders, err := s.orders.GetOrdersByCustomerID(ctx, customerID)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list customer orders: %w", err)
	}
	return orders, nil
}

// OrdersForPayment returns every order linked to a payment
func (s *FulfillmentService) OrdersForPayment(ctx context.Context, paymentID int64) ([]models.Order, error) {
	orders, err := s.orders.GetOrdersByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders for payment: %w", err)
	}
	return orders, nil
}

func (s *FulfillmentService) getOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("order %d: %w", orderID, ErrOrderNotFound)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// settleCashOnDelivery marks the pending COD payment PAID once the goods
// were handed over. Failures are logged; the status change stands.
func (s *FulfillmentService) settleCashOnDelivery(ctx context.Context, order *models.Order) {
	payment, err := s.payments.GetPaymentByID(ctx, order.PaymentID)
	if err != nil {
		s.logger.Error("Failed to load payment for delivered order",
			zap.Int64("order_id", order.ID), zap.Error(err))
		return
	}
	if payment.Method != models.PaymentMethodCOD || payment.Status != models.PaymentStatusPending {
		return
	}

	if err := s.payments.SettlePayment(ctx, payment.ID, models.PaymentStatusPaid); err != nil {
		if !errors.Is(err, store.ErrPaymentNotPending) {
			s.logger.Error("Failed to settle COD payment",
				zap.Int64("payment_id", payment.ID), zap.Error(err))
		}
		return
	}
	util.PaymentConfirmationsTotal.WithLabelValues("COD_COLLECTED").Inc()
	s.logger.Info("COD payment collected",
		zap.Int64("order_id", order.ID),
		zap.Int64("payment_id", payment.ID))
}
