package models

import "time"

// Event types
const (
	EventTypeOrderCreated       = "ORDER_CREATED"
	EventTypeOrderStatusChanged = "ORDER_STATUS_CHANGED"
	EventTypeOrderDeleted       = "ORDER_DELETED"
	EventTypeCartChanged        = "CART_CHANGED"
	EventTypePaymentConfirmed   = "PAYMENT_CONFIRMED"
)

// Gateway confirmation outcomes
const (
	OutcomePaid   = "PAID"
	OutcomeFailed = "FAILED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published when an order is materialised
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  string          `json:"customer_id"`
	PaymentID   int64           `json:"payment_id"`
	Method      string          `json:"method"`
	TotalAmount int64           `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published on every stored status change
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	PreviousStatus string `json:"previous_status"`
	Status         string `json:"status"`
}

// OrderDeletedEvent published when an administrator hard-deletes an order
type OrderDeletedEvent struct {
	BaseEvent
	OrderID   int64 `json:"order_id"`
	PaymentID int64 `json:"payment_id"`
}

// CartChangedEvent notifies UIs that a cart should be refreshed
type CartChangedEvent struct {
	BaseEvent
	OwnerKey string `json:"owner_key"`
	Reason   string `json:"reason"`
}

// PaymentConfirmedEvent is the asynchronous gateway confirmation
type PaymentConfirmedEvent struct {
	BaseEvent
	ExternalReference string `json:"external_reference"`
	Outcome           string `json:"outcome"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID   int64  `json:"product_id"`
	Quantity    int    `json:"quantity"`
	Size        string `json:"size,omitempty"`
	PriceAtTime int64  `json:"price_at_time"`
}
