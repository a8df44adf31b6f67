package models

import "time"

// Product is the read-only catalog snapshot consumed by checkout and analytics
type Product struct {
	ID             int64     `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	UnitPrice      *int64    `db:"unit_price" json:"unit_price"`
	ReferencePrice *int64    `db:"reference_price" json:"reference_price"`
	Stock          int       `db:"stock" json:"stock"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// EffectivePrice returns the unit price used for display and billing
func (p Product) EffectivePrice() int64 {
	if p.UnitPrice != nil {
		return *p.UnitPrice
	}
	if p.ReferencePrice != nil {
		return *p.ReferencePrice
	}
	return 0
}

// CartItem is a server-side cart line. OwnerKey is either an anonymous
// session id or a customer id; (OwnerKey, ProductID, Size) is unique.
type CartItem struct {
	ID        int64     `db:"id" json:"id"`
	OwnerKey  string    `db:"owner_key" json:"owner_key"`
	ProductID int64     `db:"product_id" json:"product_id"`
	Size      string    `db:"size" json:"size,omitempty"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CartLine is a cart entry as submitted by a client
type CartLine struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
}

// AnonymousCartSnapshot is the client-held pre-login cart
type AnonymousCartSnapshot struct {
	Items      []CartLine `json:"items"`
	MergedOnce bool       `json:"merged_once"`
}

// ShippingAddress is copied into the order at creation time
type ShippingAddress struct {
	FirstName  string `json:"first_name" validate:"required"`
	LastName   string `json:"last_name" validate:"required"`
	Street     string `json:"street" validate:"required"`
	City       string `json:"city,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

// Order represents a customer order
type Order struct {
	ID                int64           `db:"id" json:"id"`
	OrderNumber       string          `db:"order_number" json:"order_number"`
	CustomerID        string          `db:"customer_id" json:"customer_id"`
	Status            string          `db:"status" json:"status"`
	TotalAmount       int64           `db:"total_amount" json:"total_amount"`
	TrackingNumber    *string         `db:"tracking_number" json:"tracking_number,omitempty"`
	EstimatedDelivery *time.Time      `db:"estimated_delivery" json:"estimated_delivery,omitempty"`
	ShippingAddress   AddressSnapshot `db:"shipping_address" json:"shipping_address"`
	PaymentID         int64           `db:"payment_id" json:"payment_id"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderItem represents items in an order. PriceAtTime is frozen when the
// order is created.
type OrderItem struct {
	ID          int64  `db:"id" json:"id"`
	OrderID     int64  `db:"order_id" json:"order_id"`
	ProductID   int64  `db:"product_id" json:"product_id"`
	Quantity    int    `db:"quantity" json:"quantity"`
	Size        string `db:"size" json:"size,omitempty"`
	PriceAtTime int64  `db:"price_at_time" json:"price_at_time"`
}

// Payment represents a payment transaction. Many orders may link to one payment.
type Payment struct {
	ID                int64            `db:"id" json:"id"`
	ExternalReference string           `db:"external_reference" json:"external_reference"`
	Method            string           `db:"method" json:"method"`
	Amount            int64            `db:"amount" json:"amount"`
	Status            string           `db:"status" json:"status"`
	CustomerID        string           `db:"customer_id" json:"customer_id"`
	Checkout          CheckoutSnapshot `db:"checkout_snapshot" json:"-"`
	CreatedAt         time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time        `db:"updated_at" json:"updated_at"`
}

// PricedLine is a cart line with its unit price resolved
type PricedLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	UnitPrice int64  `json:"unit_price"`
}

// LineTotal returns unit price times quantity
func (l PricedLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Order statuses
const (
	OrderStatusOrdered    = "ORDERED"
	OrderStatusConfirmed  = "CONFIRMED"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
)

// OrderStatuses lists every order status in fulfillment order
var OrderStatuses = []string{
	OrderStatusOrdered,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// RevenueStatuses are the order statuses that count toward revenue
var RevenueStatuses = []string{OrderStatusShipped, OrderStatusDelivered}

// Payment statuses
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

// Payment methods
const (
	PaymentMethodGateway = "GATEWAY"
	PaymentMethodCOD     = "COD"
)

// Shipping methods
const (
	ShippingStandard = "STANDARD"
	ShippingExpress  = "EXPRESS"
	ShippingPickup   = "PICKUP"
)

// Roles carried by the authenticated principal
const (
	RoleCustomer = "CUSTOMER"
	RoleAdmin    = "ADMIN"
)

// IsValidOrderStatus reports whether status is a known order status
func IsValidOrderStatus(status string) bool {
	for _, s := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalOrderStatus reports whether no further fulfillment follows status
func IsTerminalOrderStatus(status string) bool {
	return status == OrderStatusDelivered || status == OrderStatusCancelled
}

// IsTerminalPaymentStatus reports whether a payment status is final
func IsTerminalPaymentStatus(status string) bool {
	return status == PaymentStatusPaid || status == PaymentStatusFailed
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
