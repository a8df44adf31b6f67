package adminclient

import (
	"fmt"
	"sort"
	"sync"

	"storefront/internal/models"
)

// EditState is the phase of one optimistic status edit
type EditState int

const (
	// EditPending means the tentative status is shown but unconfirmed
	EditPending EditState = iota
	// EditCommitted means the server's copy replaced the tentative status
	EditCommitted
	// EditRolledBack means the captured previous status was restored
	EditRolledBack
)

func (s EditState) String() string {
	switch s {
	case EditPending:
		return "pending"
	case EditCommitted:
		return "committed"
	case EditRolledBack:
		return "rolled back"
	default:
		return fmt.Sprintf("EditState(%d)", int(s))
	}
}

// StatusEdit tracks one in-flight optimistic status change
type StatusEdit struct {
	OrderID   int64
	Previous  string
	Tentative string
	Final     string
	State     EditState
	Err       error
}

// OrderBoard is the client's local view of orders
type OrderBoard struct {
	mu     sync.Mutex
	orders map[int64]models.Order
}

// NewOrderBoard creates a board seeded with orders
func NewOrderBoard(orders []models.Order) *OrderBoard {
	b := &OrderBoard{orders: make(map[int64]models.Order, len(orders))}
	b.Load(orders)
	return b
}

// Load replaces or adds orders with canonical copies
func (b *OrderBoard) Load(orders []models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range orders {
		b.orders[o.ID] = o
	}
}

// Remove drops an order from the view
func (b *OrderBoard) Remove(orderID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.orders, orderID)
}

// Status returns the displayed status of an order
func (b *OrderBoard) Status(orderID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	return o.Status, ok
}

// Orders returns the displayed orders sorted by id
func (b *OrderBoard) Orders() []models.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Order, 0, len(b.orders))
	for _, o := range b.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Begin captures the displayed status and shows tentative in its place
func (b *OrderBoard) Begin(orderID int64, tentative string) (*StatusEdit, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %d is not on the board", orderID)
	}
	edit := &StatusEdit{
		OrderID:   orderID,
		Previous:  o.Status,
		Tentative: tentative,
		State:     EditPending,
	}
	o.Status = tentative
	b.orders[orderID] = o
	return edit, nil
}

// Commit replaces the tentative value with the server's copy
func (b *OrderBoard) Commit(edit *StatusEdit, server *models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if edit.State != EditPending {
		return
	}
	b.orders[server.ID] = *server
	edit.Final = server.Status
	edit.State = EditCommitted
}

// Rollback restores the status captured by Begin
func (b *OrderBoard) Rollback(edit *StatusEdit, cause error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if edit.State != EditPending {
		return
	}
	if o, ok := b.orders[edit.OrderID]; ok {
		o.Status = edit.Previous
		b.orders[edit.OrderID] = o
	}
	edit.Final = edit.Previous
	edit.State = EditRolledBack
	edit.Err = cause
}
