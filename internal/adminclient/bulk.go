package adminclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"storefront/internal/models"

	"golang.org/x/sync/errgroup"
)

// SetStatus applies status to the board optimistically, sends it, and either
// commits the server's copy or rolls back to the captured previous status.
func (c *Client) SetStatus(ctx context.Context, board *OrderBoard, orderID int64, status string) (*StatusEdit, error) {
	edit, err := board.Begin(orderID, status)
	if err != nil {
		return nil, err
	}

	order, err := c.SetOrderStatus(ctx, orderID, status)
	if err != nil {
		board.Rollback(edit, err)
		return edit, err
	}
	board.Commit(edit, order)
	return edit, nil
}

// BulkFailure is one order the bulk update could not change
type BulkFailure struct {
	OrderID int64
	Err     error
}

// MarshalJSON renders Err as its message
func (f BulkFailure) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		OrderID int64  `json:"order_id"`
		Error   string `json:"error"`
	}{f.OrderID, f.Err.Error()})
}

// BulkReport summarises a bulk status update
type BulkReport struct {
	Total        int           `json:"total"`
	SuccessCount int           `json:"success_count"`
	Failures     []BulkFailure `json:"failures"`
	// RefreshErr is set when the canonical re-fetch failed
	RefreshErr error `json:"-"`
}

// Summary is the operator-facing line for the report
func (r *BulkReport) Summary() string {
	return fmt.Sprintf("%d of %d updated", r.SuccessCount, r.Total)
}

// BulkSetStatus fans out one SetStatus per order with at most concurrency in
// flight, then re-fetches every targeted order so the board shows canonical
// state instead of the optimistic projection.
func (c *Client) BulkSetStatus(ctx context.Context, board *OrderBoard, orderIDs []int64, status string, concurrency int) *BulkReport {
	if concurrency <= 0 {
		concurrency = 4
	}

	errs := make([]error, len(orderIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, id := range orderIDs {
		i, id := i, id
		g.Go(func() error {
			_, errs[i] = c.SetStatus(gctx, board, id, status)
			return nil
		})
	}
	_ = g.Wait()

	report := &BulkReport{Total: len(orderIDs)}
	for i, err := range errs {
		if err != nil {
			report.Failures = append(report.Failures, BulkFailure{OrderID: orderIDs[i], Err: err})
			continue
		}
		report.SuccessCount++
	}

	report.RefreshErr = c.Refresh(ctx, board, orderIDs, concurrency)
	return report
}

// Refresh reloads orderIDs from the server. Orders that no longer exist are
// removed from the board.
func (c *Client) Refresh(ctx context.Context, board *OrderBoard, orderIDs []int64, concurrency int) error {
	if concurrency <= 0 {
		concurrency = 4
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for _, id := range orderIDs {
		id := id
		g.Go(func() error {
			view, err := c.GetOrder(ctx, id)
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				board.Remove(id)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to refresh order %d: %w", id, err)
			}
			board.Load([]models.Order{*view.Order})
			return nil
		})
	}
	return g.Wait()
}
