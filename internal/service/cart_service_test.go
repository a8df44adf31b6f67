package service

import (
	"context"
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCartService() (*CartService, *memStore, *recordingPublisher) {
	m := newMemStore()
	m.addProduct(1, "Linen Shirt", 50000)
	m.addProduct(2, "Canvas Tote", 30000)
	pub := &recordingPublisher{}
	return NewCartService(m, m, pub), m, pub
}

func TestAddItemIncrementsExistingLine(t *testing.T) {
	svc, m, pub := newTestCartService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "cust-1", models.CartLine{ProductID: 1, Quantity: 1, Size: "M"})
	require.NoError(t, err)
	item, err := svc.AddItem(ctx, "cust-1", models.CartLine{ProductID: 1, Quantity: 2, Size: "M"})
	require.NoError(t, err)

	assert.Equal(t, 3, item.Quantity)
	lines, _ := m.ListCartItems(ctx, "cust-1")
	assert.Len(t, lines, 1)
	assert.Len(t, pub.cartChanged, 2)
}

func TestAddItemRejectsBadInput(t *testing.T) {
	svc, _, _ := newTestCartService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "cust-1", models.CartLine{ProductID: 1, Quantity: 0})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.AddItem(ctx, "cust-1", models.CartLine{ProductID: 99, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetCartUsesEffectivePrice(t *testing.T) {
	svc, m, _ := newTestCartService()
	ctx := context.Background()
	m.products[3] = models.Product{ID: 3, Name: "Sample", ReferencePrice: price(12000), Active: true}
	m.products[4] = models.Product{ID: 4, Name: "Ask us", Active: true}

	for _, id := range []int64{1, 3, 4} {
		_, err := svc.AddItem(ctx, "cust-1", models.CartLine{ProductID: id, Quantity: 2})
		require.NoError(t, err)
	}

	view, err := svc.GetCart(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 3)
	assert.Equal(t, int64(50000), view.Lines[0].UnitPrice)
	assert.Equal(t, int64(12000), view.Lines[1].UnitPrice)
	assert.Equal(t, int64(0), view.Lines[2].UnitPrice)
	assert.Equal(t, int64(2*50000+2*12000), view.Subtotal)
}

func TestRemoveItem(t *testing.T) {
	svc, _, _ := newTestCartService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "cust-1", models.CartLine{ProductID: 2, Quantity: 1})
	require.NoError(t, err)
	require.NoError(t, svc.RemoveItem(ctx, "cust-1", 2, ""))

	err = svc.RemoveItem(ctx, "cust-1", 2, "")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestMergeAnonymousCartIsAtMostOnce(t *testing.T) {
	svc, m, pub := newTestCartService()
	ctx := context.Background()

	snapshot := models.AnonymousCartSnapshot{Items: []models.CartLine{
		{ProductID: 1, Quantity: 2, Size: "M"},
		{ProductID: 2, Quantity: 1},
	}}

	first, err := svc.MergeAnonymousCart(ctx, "cust-1", snapshot)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Merged)
	assert.True(t, first.Snapshot.MergedOnce)
	assert.Empty(t, first.Snapshot.Items)

	afterFirst, _ := m.ListCartItems(ctx, "cust-1")

	second, err := svc.MergeAnonymousCart(ctx, "cust-1", first.Snapshot)
	require.NoError(t, err)
	assert.True(t, second.AlreadyMerged)
	assert.Zero(t, second.Merged)

	afterSecond, _ := m.ListCartItems(ctx, "cust-1")
	assert.Equal(t, afterFirst, afterSecond)
	assert.Len(t, pub.cartChanged, 1)
}

func TestMergeAddsToExistingLine(t *testing.T) {
	svc, m, _ := newTestCartService()
	ctx := context.Background()

	_, err := svc.AddItem(ctx, "cust-1", models.CartLine{ProductID: 1, Quantity: 1, Size: "M"})
	require.NoError(t, err)

	_, err = svc.MergeAnonymousCart(ctx, "cust-1", models.AnonymousCartSnapshot{
		Items: []models.CartLine{{ProductID: 1, Quantity: 2, Size: "M"}},
	})
	require.NoError(t, err)

	lines, _ := m.ListCartItems(ctx, "cust-1")
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestMergeSkipsInvalidAndContinuesPastFailures(t *testing.T) {
	svc, m, _ := newTestCartService()
	ctx := context.Background()
	m.failUpsert[1] = true

	result, err := svc.MergeAnonymousCart(ctx, "cust-1", models.AnonymousCartSnapshot{Items: []models.CartLine{
		{ProductID: 1, Quantity: 1},
		{ProductID: 0, Quantity: 1},
		{ProductID: 2, Quantity: -1},
		{ProductID: 2, Quantity: 3},
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Merged)
	assert.Equal(t, 2, result.Skipped)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, int64(1), result.Failed[0].ProductID)
	assert.True(t, result.Snapshot.MergedOnce)
	assert.Empty(t, result.Snapshot.Items)
}

func TestMergeRequiresCustomer(t *testing.T) {
	svc, _, _ := newTestCartService()

	_, err := svc.MergeAnonymousCart(context.Background(), "", models.AnonymousCartSnapshot{
		Items: []models.CartLine{{ProductID: 1, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestMergeEmptySnapshotIsNoop(t *testing.T) {
	svc, _, _ := newTestCartService()

	result, err := svc.MergeAnonymousCart(context.Background(), "cust-1", models.AnonymousCartSnapshot{})
	require.NoError(t, err)
	assert.False(t, result.Snapshot.MergedOnce)
	assert.Zero(t, result.Merged)
}

func TestMergeDropsUnavailableProducts(t *testing.T) {
	svc, m, _ := newTestCartService()
	ctx := context.Background()
	m.deactivate(2)

	result, err := svc.MergeAnonymousCart(ctx, "cust-1", models.AnonymousCartSnapshot{Items: []models.CartLine{
		{ProductID: 1, Quantity: 1},
		{ProductID: 999, Quantity: 1},
		{ProductID: 2, Quantity: 1},
	}})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Merged)
	require.Len(t, result.Failed, 2)
	assert.Equal(t, int64(999), result.Failed[0].ProductID)
	assert.Equal(t, int64(2), result.Failed[1].ProductID)
	assert.True(t, result.Snapshot.MergedOnce)

	lines, _ := m.ListCartItems(ctx, "cust-1")
	require.Len(t, lines, 1)
	assert.Equal(t, int64(1), lines[0].ProductID)

	checkout := NewCheckoutService(m, m, m, &fakeGateway{}, &counterSequence{}, &recordingPublisher{}, CheckoutConfig{})
	placed, err := checkout.PlaceCODOrder(ctx, &CheckoutRequest{
		CustomerID:      "cust-1",
		ShippingAddress: models.ShippingAddress{FirstName: "Ana", LastName: "Lee", Street: "1 Main St"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), placed.Order.TotalAmount)
}

func TestMergeCatalogOutageKeepsSnapshot(t *testing.T) {
	svc, m, _ := newTestCartService()
	m.failCatalog = true

	snapshot := models.AnonymousCartSnapshot{Items: []models.CartLine{{ProductID: 1, Quantity: 1}}}
	_, err := svc.MergeAnonymousCart(context.Background(), "cust-1", snapshot)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)

	lines, _ := m.ListCartItems(context.Background(), "cust-1")
	assert.Empty(t, lines)
}

func TestGetCartHidesDeactivatedProducts(t *testing.T) {
	svc, m, _ := newTestCartService()
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		_, err := svc.AddItem(ctx, "cust-1", models.CartLine{ProductID: id, Quantity: 1})
		require.NoError(t, err)
	}
	m.deactivate(2)

	view, err := svc.GetCart(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, int64(1), view.Lines[0].ProductID)

	_, err = svc.AddItem(ctx, "cust-1", models.CartLine{ProductID: 2, Quantity: 1})
	assert.ErrorIs(t, err, ErrProductNotFound)
}
