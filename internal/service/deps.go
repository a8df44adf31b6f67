package service

import (
	"context"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/google/uuid"
)

// ProductCatalog is the read-only view of the external catalog
type ProductCatalog interface {
	GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error)
}

// CartRepository persists server-side cart lines
type CartRepository interface {
	UpsertCartItem(ctx context.Context, ownerKey string, productID int64, size string, quantity int) (*models.CartItem, error)
	ListCartItems(ctx context.Context, ownerKey string) ([]models.CartItem, error)
	DeleteCartItem(ctx context.Context, ownerKey string, productID int64, size string) error
}

// PaymentRepository persists payments and the orders created with them
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *models.Payment) error
	GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error)
	GetPaymentByExternalReference(ctx context.Context, ref string) (*models.Payment, error)
	SettlePayment(ctx context.Context, paymentID int64, status string) error
	CreateOrderWithPayment(ctx context.Context, payment *models.Payment, order *models.Order, items []models.OrderItem, cartOwner string) error
	ConfirmPaymentAndCreateOrder(ctx context.Context, paymentID int64, order *models.Order, items []models.OrderItem, cartOwner string) error
}

// OrderRepository reads and mutates stored orders
type OrderRepository interface {
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, filter store.OrderListFilter) ([]models.Order, error)
	GetOrdersByCustomerID(ctx context.Context, customerID string) ([]models.Order, error)
	GetOrdersByPaymentID(ctx context.Context, paymentID int64) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, status string) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID int64) error
}

// AnalyticsRepository runs the read-side aggregations
type AnalyticsRepository interface {
	CountActiveProducts(ctx context.Context) (int64, error)
	CountUsers(ctx context.Context) (int64, error)
	NewUsersByDay(ctx context.Context, from time.Time) ([]store.DailyUserRow, error)
	CountOrders(ctx context.Context, filter store.OrderFilter) (int64, error)
	SumOrderTotals(ctx context.Context, filter store.OrderFilter) (int64, error)
	DailyOrderTotals(ctx context.Context, from time.Time, revenueStatuses []string) ([]store.DailyOrderRow, error)
	CountOrdersByStatus(ctx context.Context, filter store.OrderFilter) ([]store.StatusCountRow, error)
	TopProducts(ctx context.Context, filter store.OrderFilter, limit int) ([]store.ProductSalesRow, error)
}

// EventPublisher emits domain events. Publication failures never fail the caller.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
	PublishOrderDeleted(ctx context.Context, event *models.OrderDeletedEvent) error
	PublishCartChanged(ctx context.Context, event *models.CartChangedEvent) error
}

// Sequencer hands out monotonically increasing numbers per name
type Sequencer interface {
	Next(ctx context.Context, name string) (int64, error)
}

// SnapshotCache stores computed analytics snapshots
type SnapshotCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

func newBaseEvent(eventType string, now time.Time) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: now,
	}
}
