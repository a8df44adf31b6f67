package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"storefront/internal/gateway"
	"storefront/internal/models"
	"storefront/internal/store"
)

// memStore is an in-memory stand-in for *store.Store
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	products map[int64]models.Product
	cart     map[string][]models.CartItem
	payments map[int64]*models.Payment
	orders   map[int64]*models.Order
	items    map[int64][]models.OrderItem

	failUpsert map[int64]bool
	failUpdate map[int64]bool
	failOrder   bool
	failCatalog bool
}

func newMemStore() *memStore {
	return &memStore{
		products:   map[int64]models.Product{},
		cart:       map[string][]models.CartItem{},
		payments:   map[int64]*models.Payment{},
		orders:     map[int64]*models.Order{},
		items:      map[int64][]models.OrderItem{},
		failUpsert: map[int64]bool{},
		failUpdate: map[int64]bool{},
	}
}

func price(v int64) *int64 { return &v }

func (m *memStore) addProduct(id int64, name string, unit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = models.Product{ID: id, Name: name, UnitPrice: price(unit), Active: true}
}

func (m *memStore) deactivate(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	p.Active = false
	m.products[id] = p
}

func (m *memStore) setPrice(id int64, unit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.products[id]
	p.UnitPrice = price(unit)
	m.products[id] = p
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []int64) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCatalog {
		return nil, errors.New("select products: connection refused")
	}
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpsertCartItem(_ context.Context, owner string, productID int64, size string, qty int) (*models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpsert[productID] {
		return nil, fmt.Errorf("upsert product %d: connection reset", productID)
	}
	lines := m.cart[owner]
	for i := range lines {
		if lines[i].ProductID == productID && lines[i].Size == size {
			lines[i].Quantity += qty
			item := lines[i]
			return &item, nil
		}
	}
	item := models.CartItem{ID: m.id(), OwnerKey: owner, ProductID: productID, Size: size, Quantity: qty}
	m.cart[owner] = append(lines, item)
	return &item, nil
}

func (m *memStore) ListCartItems(_ context.Context, owner string) ([]models.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CartItem{}, m.cart[owner]...), nil
}

func (m *memStore) DeleteCartItem(_ context.Context, owner string, productID int64, size string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCartLine(owner, productID, size)
}

func (m *memStore) deleteCartLine(owner string, productID int64, size string) error {
	lines := m.cart[owner]
	for i := range lines {
		if lines[i].ProductID == productID && lines[i].Size == size {
			m.cart[owner] = append(lines[:i], lines[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) CreatePayment(_ context.Context, p *models.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memStore) GetPaymentByID(_ context.Context, id int64) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetPaymentByExternalReference(_ context.Context, ref string) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.ExternalReference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) SettlePayment(_ context.Context, id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.settle(id, status)
}

func (m *memStore) settle(id int64, status string) error {
	p, ok := m.payments[id]
	if !ok || p.Status != models.PaymentStatusPending {
		return store.ErrPaymentNotPending
	}
	p.Status = status
	return nil
}

func (m *memStore) CreateOrderWithPayment(_ context.Context, p *models.Payment, o *models.Order, items []models.OrderItem, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOrder {
		return errors.New("insert order: disk full")
	}
	p.ID = m.id()
	cp := *p
	m.payments[p.ID] = &cp
	o.PaymentID = p.ID
	m.insertOrder(o, items, owner)
	return nil
}

func (m *memStore) ConfirmPaymentAndCreateOrder(_ context.Context, paymentID int64, o *models.Order, items []models.OrderItem, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.settle(paymentID, models.PaymentStatusPaid); err != nil {
		return err
	}
	o.PaymentID = paymentID
	m.insertOrder(o, items, owner)
	return nil
}

func (m *memStore) insertOrder(o *models.Order, items []models.OrderItem, owner string) {
	o.ID = m.id()
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	m.orders[o.ID] = &cp
	for i := range items {
		items[i].ID = m.id()
		items[i].OrderID = o.ID
		_ = m.deleteCartLine(owner, items[i].ProductID, items[i].Size)
	}
	m.items[o.ID] = append([]models.OrderItem{}, items...)
}

func (m *memStore) addOrder(status string, paymentID, total int64) *models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := &models.Order{CustomerID: "cust-1", Status: status, PaymentID: paymentID, TotalAmount: total}
	m.insertOrder(o, nil, "")
	return o
}

func (m *memStore) addPayment(method, status string, amount int64) *models.Payment {
	p := &models.Payment{Method: method, Status: status, Amount: amount, ExternalReference: fmt.Sprintf("REF-%d", m.nextID+1)}
	_ = m.CreatePayment(context.Background(), p)
	return p
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOrders(_ context.Context, f store.OrderListFilter) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if f.Status == "" || o.Status == f.Status {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) GetOrdersByCustomerID(_ context.Context, customerID string) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.CustomerID == customerID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) GetOrdersByPaymentID(_ context.Context, paymentID int64) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if o.PaymentID == paymentID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) GetOrderItemsByOrderID(_ context.Context, orderID int64) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderItem{}, m.items[orderID]...), nil
}

func (m *memStore) UpdateOrderStatus(_ context.Context, id int64, status string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate[id] {
		return nil, fmt.Errorf("update order %d: deadlock detected", id)
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o.Status = status
	cp := *o
	return &cp, nil
}

func (m *memStore) DeleteOrder(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.orders, id)
	delete(m.items, id)
	return nil
}

// recordingPublisher captures published events
type recordingPublisher struct {
	mu            sync.Mutex
	created       []*models.OrderCreatedEvent
	statusChanged []*models.OrderStatusChangedEvent
	deleted       []*models.OrderDeletedEvent
	cartChanged   []*models.CartChangedEvent
}

func (r *recordingPublisher) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, e)
	return nil
}

func (r *recordingPublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusChanged = append(r.statusChanged, e)
	return nil
}

func (r *recordingPublisher) PublishOrderDeleted(_ context.Context, e *models.OrderDeletedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, e)
	return nil
}

func (r *recordingPublisher) PublishCartChanged(_ context.Context, e *models.CartChangedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cartChanged = append(r.cartChanged, e)
	return nil
}

type counterSequence struct {
	mu sync.Mutex
	n  map[string]int64
}

func (c *counterSequence) Next(_ context.Context, name string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.n == nil {
		c.n = map[string]int64{}
	}
	c.n[name]++
	return c.n[name], nil
}

type fakeGateway struct {
	requests []gateway.CheckoutRequest
	err      error
}

func (f *fakeGateway) CreateCheckout(_ context.Context, req gateway.CheckoutRequest) (gateway.CheckoutSession, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return gateway.CheckoutSession{}, f.err
	}
	return gateway.CheckoutSession{
		SessionID:         "cs_1",
		CheckoutURL:       "https://pay.test/" + req.ExternalReference,
		ExternalReference: req.ExternalReference,
	}, nil
}

func storeFilter(status string) store.OrderListFilter {
	return store.OrderListFilter{Status: status}
}
