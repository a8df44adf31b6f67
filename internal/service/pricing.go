package service

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// ShippingRates maps shipping methods to their cost
type ShippingRates struct {
	Standard int64
	Express  int64
}

// Cost returns the cost of method, or a validation error for unknown methods.
// An empty method is treated as STANDARD.
func (r ShippingRates) Cost(method string) (int64, error) {
	switch method {
	case "", models.ShippingStandard:
		return r.Standard, nil
	case models.ShippingExpress:
		return r.Express, nil
	case models.ShippingPickup:
		return 0, nil
	default:
		return 0, invalid("shipping_method", fmt.Sprintf("unknown shipping method %q", method))
	}
}

// NormalizeShippingMethod maps the empty method to STANDARD
func NormalizeShippingMethod(method string) string {
	if method == "" {
		return models.ShippingStandard
	}
	return method
}

// availableProducts loads ids and keeps only products that are still offered
func availableProducts(ctx context.Context, catalog ProductCatalog, ids []int64) (map[int64]models.Product, error) {
	products, err := catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}
	byID := make(map[int64]models.Product, len(products))
	for _, p := range products {
		if p.Active {
			byID[p.ID] = p
		}
	}
	return byID, nil
}

// priceLines resolves effective prices for lines at this instant. Unknown
// and inactive products are rejected.
func priceLines(ctx context.Context, catalog ProductCatalog, lines []models.CartLine) ([]models.PricedLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %w", ErrValidation, ErrEmptyCart)
	}

	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for i, line := range lines {
		if line.ProductID <= 0 {
			return nil, invalid(fmt.Sprintf("items[%d].product_id", i), "is required")
		}
		if line.Quantity <= 0 {
			return nil, invalid(fmt.Sprintf("items[%d].quantity", i), "must be positive")
		}
		if !seen[line.ProductID] {
			seen[line.ProductID] = true
			ids = append(ids, line.ProductID)
		}
	}

	byID, err := availableProducts(ctx, catalog, ids)
	if err != nil {
		return nil, err
	}

	priced := make([]models.PricedLine, 0, len(lines))
	for i, line := range lines {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, &ValidationError{Fields: map[string]string{
				fmt.Sprintf("items[%d].product_id", i): fmt.Sprintf("%s: %d", ErrProductNotFound, line.ProductID),
			}}
		}
		priced = append(priced, models.PricedLine{
			ProductID: line.ProductID,
			Name:      product.Name,
			Quantity:  line.Quantity,
			Size:      line.Size,
			UnitPrice: product.EffectivePrice(),
		})
	}
	return priced, nil
}

// subtotal sums extended prices
func subtotal(lines []models.PricedLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.LineTotal()
	}
	return total
}

// orderItemsFrom freezes priced lines into order items
func orderItemsFrom(lines []models.PricedLine) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, models.OrderItem{
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			Size:        l.Size,
			PriceAtTime: l.UnitPrice,
		})
	}
	return items
}

func orderItemData(items []models.OrderItem) []models.OrderItemData {
	data := make([]models.OrderItemData, 0, len(items))
	for _, it := range items {
		data = append(data, models.OrderItemData{
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			Size:        it.Size,
			PriceAtTime: it.PriceAtTime,
		})
	}
	return data
}
