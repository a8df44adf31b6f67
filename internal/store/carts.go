package store

import (
	"context"
	"fmt"

	"storefront/internal/models"
)

// UpsertCartItem adds quantity to the (owner, product, size) line, creating it if absent
func (s *Store) UpsertCartItem(ctx context.Context, ownerKey string, productID int64, size string, quantity int) (*models.CartItem, error) {
	query := `
		INSERT INTO cart_items (owner_key, product_id, size, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (owner_key, product_id, size)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING *`

	var item models.CartItem
	if err := s.db.GetContext(ctx, &item, query, ownerKey, productID, size, quantity); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListCartItems returns every line of a cart
func (s *Store) ListCartItems(ctx context.Context, ownerKey string) ([]models.CartItem, error) {
	items := []models.CartItem{}
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM cart_items WHERE owner_key = $1 ORDER BY id", ownerKey)
	return items, err
}

// DeleteCartItem removes one cart line
func (s *Store) DeleteCartItem(ctx context.Context, ownerKey string, productID int64, size string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE owner_key = $1 AND product_id = $2 AND size = $3",
		ownerKey, productID, size)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cart item for product %d: %w", productID, ErrNotFound)
	}
	return nil
}
