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
)

// Cart change reasons carried on CartChangedEvent
const (
	CartReasonItemAdded   = "ITEM_ADDED"
	CartReasonItemRemoved = "ITEM_REMOVED"
	CartReasonMerged      = "MERGED"
)

// CartService manages server-side carts and the one-time merge of the
// anonymous pre-login cart.
type CartService struct {
	carts   CartRepository
	catalog ProductCatalog
	events  EventPublisher
	logger  *zap.Logger
	now     func() time.Time
}

// NewCartService creates a new cart service
func NewCartService(carts CartRepository, catalog ProductCatalog, events EventPublisher) *CartService {
	return &CartService{
		carts:   carts,
		catalog: catalog,
		events:  events,
		logger:  util.GetLogger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CartView is a cart priced at read time
type CartView struct {
	OwnerKey string              `json:"owner_key"`
	Lines    []models.PricedLine `json:"lines"`
	Subtotal int64               `json:"subtotal"`
}

// MergeFailure describes one anonymous item that could not be merged
type MergeFailure struct {
	ProductID int64  `json:"product_id"`
	Size      string `json:"size,omitempty"`
	Reason    string `json:"reason"`
}

// MergeResult reports the outcome of MergeAnonymousCart. Snapshot is the
// value the client should keep from now on.
type MergeResult struct {
	Merged        int                          `json:"merged"`
	Skipped       int                          `json:"skipped"`
	Failed        []MergeFailure               `json:"failed"`
	AlreadyMerged bool                         `json:"already_merged"`
	Snapshot      models.AnonymousCartSnapshot `json:"snapshot"`
}

// AddItem adds quantity of a product to the owner's cart
func (s *CartService) AddItem(ctx context.Context, ownerKey string, line models.CartLine) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem",
		attribute.Int64("product_id", line.ProductID))
	defer span.End()

	if ownerKey == "" {
		return nil, invalid("owner", "is required")
	}
	if line.ProductID <= 0 {
		return nil, invalid("product_id", "is required")
	}
	if line.Quantity <= 0 {
		return nil, invalid("quantity", "must be positive")
	}

	products, err := availableProducts(ctx, s.catalog, []int64{line.ProductID})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	if _, ok := products[line.ProductID]; !ok {
		return nil, fmt.Errorf("product %d: %w", line.ProductID, ErrProductNotFound)
	}

	item, err := s.carts.UpsertCartItem(ctx, ownerKey, line.ProductID, line.Size, line.Quantity)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}

	s.publishCartChanged(ctx, ownerKey, CartReasonItemAdded)
	return item, nil
}

// RemoveItem removes one (product, size) line from the owner's cart
func (s *CartService) RemoveItem(ctx context.Context, ownerKey string, productID int64, size string) error {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem",
		attribute.Int64("product_id", productID))
	defer span.End()

	if err := s.carts.DeleteCartItem(ctx, ownerKey, productID, size); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("cart item for product %d: %w", productID, ErrProductNotFound)
		}
		util.RecordError(span, err)
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	s.publishCartChanged(ctx, ownerKey, CartReasonItemRemoved)
	return nil
}

// GetCart returns the owner's cart priced with current effective prices.
// Lines whose product left the catalog or was deactivated are dropped from
// the view.
func (s *CartService) GetCart(ctx context.Context, ownerKey string) (*CartView, error) {
	ctx, span := util.StartSpan(ctx, "CartService.GetCart")
	defer span.End()

	items, err := s.carts.ListCartItems(ctx, ownerKey)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}

	view := &CartView{OwnerKey: ownerKey, Lines: []models.PricedLine{}}
	if len(items) == 0 {
		return view, nil
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	byID, err := availableProducts(ctx, s.catalog, ids)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			s.logger.Warn("Cart line references unavailable product",
				zap.String("owner", ownerKey),
				zap.Int64("product_id", it.ProductID))
			continue
		}
		view.Lines = append(view.Lines, models.PricedLine{
			ProductID: it.ProductID,
			Name:      p.Name,
			Quantity:  it.Quantity,
			Size:      it.Size,
			UnitPrice: p.EffectivePrice(),
		})
	}
	view.Subtotal = subtotal(view.Lines)
	return view, nil
}

// MergeAnonymousCart folds the anonymous cart into the customer's server
// cart. Each item is attempted independently; failures are reported but do
// not abort the rest. Items for unknown or inactive products are reported as
// failed and dropped. A catalog outage aborts before anything is attempted
// and leaves the snapshot as it was. Once any item was attempted the returned snapshot is
// empty with MergedOnce set, so repeated calls are no-ops.
func (s *CartService) MergeAnonymousCart(ctx context.Context, customerID string, snapshot models.AnonymousCartSnapshot) (*MergeResult, error) {
	ctx, span := util.StartSpan(ctx, "CartService.MergeAnonymousCart",
		attribute.Int("items", len(snapshot.Items)))
	defer span.End()

	if customerID == "" {
		return nil, fmt.Errorf("merge requires an authenticated customer: %w", ErrForbidden)
	}

	result := &MergeResult{Failed: []MergeFailure{}, Snapshot: snapshot}
	if snapshot.MergedOnce {
		result.AlreadyMerged = true
		util.CartMergesTotal.WithLabelValues("already_merged").Inc()
		return result, nil
	}
	if len(snapshot.Items) == 0 {
		return result, nil
	}

	ids := make([]int64, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		if item.ProductID > 0 && item.Quantity > 0 {
			ids = append(ids, item.ProductID)
		}
	}
	offered := map[int64]models.Product{}
	if len(ids) > 0 {
		var err error
		if offered, err = availableProducts(ctx, s.catalog, ids); err != nil {
			util.RecordError(span, err)
			return nil, err
		}
	}

	for _, item := range snapshot.Items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			result.Skipped++
			continue
		}
		if _, ok := offered[item.ProductID]; !ok {
			result.Failed = append(result.Failed, MergeFailure{
				ProductID: item.ProductID,
				Size:      item.Size,
				Reason:    ErrProductNotFound.Error(),
			})
			continue
		}
		if _, err := s.carts.UpsertCartItem(ctx, customerID, item.ProductID, item.Size, item.Quantity); err != nil {
			s.logger.Warn("Failed to merge cart item",
				zap.String("customer_id", customerID),
				zap.Int64("product_id", item.ProductID),
				zap.Error(err))
			result.Failed = append(result.Failed, MergeFailure{
				ProductID: item.ProductID,
				Size:      item.Size,
				Reason:    err.Error(),
			})
			continue
		}
		result.Merged++
	}

	result.Snapshot = models.AnonymousCartSnapshot{Items: []models.CartLine{}, MergedOnce: true}

	outcome := "merged"
	if len(result.Failed) > 0 {
		outcome = "partial"
	}
	util.CartMergesTotal.WithLabelValues(outcome).Inc()

	s.logger.Info("Anonymous cart merged",
		zap.String("customer_id", customerID),
		zap.Int("merged", result.Merged),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)))

	if result.Merged > 0 {
		s.publishCartChanged(ctx, customerID, CartReasonMerged)
	}
	return result, nil
}

func (s *CartService) publishCartChanged(ctx context.Context, ownerKey, reason string) {
	if s.events == nil {
		return
	}
	event := &models.CartChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeCartChanged, s.now()),
		OwnerKey:  ownerKey,
		Reason:    reason,
	}
	if err := s.events.PublishCartChanged(ctx, event); err != nil {
		s.logger.Error("Failed to publish CartChanged event", zap.Error(err))
	}
}
