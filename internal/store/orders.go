package store

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

// OrderListFilter narrows ListOrders
type OrderListFilter struct {
	Status string
	Limit  int
	Offset int
}

// CreatePayment creates a new payment record
func (s *Store) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return insertPayment(ctx, s.db, payment)
}

// GetPaymentByID retrieves a payment by ID
func (s *Store) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.GetContext(ctx, &payment, "SELECT * FROM payments WHERE id = $1", id); err != nil {
		return nil, notFound(err, "payment", id)
	}
	return &payment, nil
}

// GetPaymentByExternalReference retrieves a payment by its gateway or COD reference
func (s *Store) GetPaymentByExternalReference(ctx context.Context, ref string) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.GetContext(ctx, &payment,
		"SELECT * FROM payments WHERE external_reference = $1", ref); err != nil {
		return nil, notFound(err, "payment", ref)
	}
	return &payment, nil
}

// SettlePayment moves a PENDING payment to a terminal status. It returns
// ErrPaymentNotPending when the payment was already settled.
func (s *Store) SettlePayment(ctx context.Context, paymentID int64, status string) error {
	return settlePayment(ctx, s.db, paymentID, status)
}

// CreateOrderWithPayment inserts the payment, the order and its items, and
// clears the ordered cart lines, all in one transaction.
func (s *Store) CreateOrderWithPayment(ctx context.Context, payment *models.Payment, order *models.Order, items []models.OrderItem, cartOwner string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := insertPayment(ctx, tx, payment); err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		order.PaymentID = payment.ID
		return insertOrder(ctx, tx, order, items, cartOwner)
	})
}

// ConfirmPaymentAndCreateOrder marks a pending payment PAID and creates the
// deferred order in the same transaction.
func (s *Store) ConfirmPaymentAndCreateOrder(ctx context.Context, paymentID int64, order *models.Order, items []models.OrderItem, cartOwner string) error {
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := settlePayment(ctx, tx, paymentID, models.PaymentStatusPaid); err != nil {
			return err
		}
		order.PaymentID = paymentID
		return insertOrder(ctx, tx, order, items, cartOwner)
	})
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id); err != nil {
		return nil, notFound(err, "order", id)
	}
	return &order, nil
}

// ListOrders retrieves orders, newest first
func (s *Store) ListOrders(ctx context.Context, filter OrderListFilter) ([]models.Order, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	orders := []models.Order{}
	var err error
	if filter.Status != "" {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3",
			filter.Status, filter.Limit, filter.Offset)
	} else {
		err = s.db.SelectContext(ctx, &orders,
			"SELECT * FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2",
			filter.Limit, filter.Offset)
	}
	return orders, err
}

// GetOrdersByCustomerID retrieves orders for a customer
func (s *Store) GetOrdersByCustomerID(ctx context.Context, customerID string) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE customer_id = $1 ORDER BY created_at DESC", customerID)
	return orders, err
}

// GetOrdersByPaymentID retrieves all orders linked to a payment
func (s *Store) GetOrdersByPaymentID(ctx context.Context, paymentID int64) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE payment_id = $1 ORDER BY id", paymentID)
	return orders, err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	return items, err
}

// UpdateOrderStatus sets the order status and returns the stored row. Last write wins.
func (s *Store) UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING *",
		status, orderID)
	if err != nil {
		return nil, notFound(err, "order", orderID)
	}
	return &order, nil
}

// DeleteOrder hard-deletes an order and its items. The linked payment is kept.
func (s *Store) DeleteOrder(ctx context.Context, orderID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %d: %w", orderID, ErrNotFound)
	}
	return nil
}

// IsEventProcessed checks if an event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}

func insertPayment(ctx context.Context, q sqlx.QueryerContext, payment *models.Payment) error {
	query := `
		INSERT INTO payments (external_reference, method, amount, status, customer_id, checkout_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return sqlx.GetContext(ctx, q, payment, query,
		payment.ExternalReference, payment.Method, payment.Amount, payment.Status,
		payment.CustomerID, payment.Checkout)
}

func settlePayment(ctx context.Context, e sqlx.ExecerContext, paymentID int64, status string) error {
	res, err := e.ExecContext(ctx,
		"UPDATE payments SET status = $1, updated_at = NOW() WHERE id = $2 AND status = 'PENDING'",
		status, paymentID)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payment %d: %w", paymentID, ErrPaymentNotPending)
	}
	return nil
}

func insertOrder(ctx context.Context, tx *sqlx.Tx, order *models.Order, items []models.OrderItem, cartOwner string) error {
	query := `
		INSERT INTO orders (order_number, customer_id, status, total_amount, shipping_address, payment_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, order, query,
		order.OrderNumber, order.CustomerID, order.Status, order.TotalAmount,
		order.ShippingAddress, order.PaymentID); err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	for i := range items {
		items[i].OrderID = order.ID
		if err := tx.GetContext(ctx, &items[i].ID, `
			INSERT INTO order_items (order_id, product_id, quantity, size, price_at_time)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			order.ID, items[i].ProductID, items[i].Quantity, items[i].Size, items[i].PriceAtTime); err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}

		if cartOwner == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM cart_items WHERE owner_key = $1 AND product_id = $2 AND size = $3",
			cartOwner, items[i].ProductID, items[i].Size); err != nil {
			return fmt.Errorf("failed to clear cart line: %w", err)
		}
	}

	return nil
}
