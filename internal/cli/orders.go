package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"storefront/internal/adminclient"
	"storefront/internal/models"

	"github.com/spf13/cobra"
)

func (a *app) ordersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and update orders",
	}
	cmd.AddCommand(
		a.ordersListCommand(),
		a.ordersShowCommand(),
		a.ordersSetStatusCommand(),
		a.ordersBulkStatusCommand(),
		a.ordersDeleteCommand(),
	)
	return cmd
}

func (a *app) ordersListCommand() *cobra.Command {
	var (
		status string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			orders, err := c.ListOrders(cmd.Context(), strings.ToUpper(status), limit)
			if err != nil {
				return fmt.Errorf("failed to list orders: %w", err)
			}
			return a.render(orders, func() { a.orderTable(orders) })
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only orders in this status")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of orders")
	return cmd
}

func (a *app) ordersShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show ORDER_ID",
		Short: "Show one order with its items and payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			view, err := c.GetOrder(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get order %d: %w", id, err)
			}
			return a.render(view, func() { a.orderDetail(view) })
		},
	}
}

func (a *app) ordersSetStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status ORDER_ID STATUS",
		Short: "Move one order to STATUS",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			status, err := parseStatus(args[1])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}

			view, err := c.GetOrder(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("failed to get order %d: %w", id, err)
			}
			board := adminclient.NewOrderBoard([]models.Order{*view.Order})

			edit, err := c.SetStatus(cmd.Context(), board, id, status)
			if err != nil {
				return fmt.Errorf("failed to update order %d: %w", id, err)
			}
			fmt.Fprintf(a.out, "order %d: %s -> %s\n", id, edit.Previous, edit.Final)
			return nil
		},
	}
}

func (a *app) ordersBulkStatusCommand() *cobra.Command {
	var concurrency int
	cmd := &cobra.Command{
		Use:   "bulk-status STATUS ORDER_ID...",
		Short: "Move several orders to STATUS",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseStatus(args[0])
			if err != nil {
				return err
			}
			ids := make([]int64, 0, len(args)-1)
			for _, raw := range args[1:] {
				id, err := parseOrderID(raw)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			c, err := a.client()
			if err != nil {
				return err
			}

			board := adminclient.NewOrderBoard(nil)
			if err := c.Refresh(cmd.Context(), board, ids, concurrency); err != nil {
				return err
			}
			targets, missing := splitOnBoard(board, ids)
			report := c.BulkSetStatus(cmd.Context(), board, targets, status, concurrency)
			for _, id := range missing {
				report.Total++
				report.Failures = append(report.Failures, adminclient.BulkFailure{OrderID: id, Err: errOrderMissing})
			}
			return a.render(report, func() { a.bulkSummary(report) })
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Maximum requests in flight")
	return cmd
}

func (a *app) ordersDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ORDER_ID",
		Short: "Hard-delete an order. Its payment is kept.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOrderID(args[0])
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			if err := c.DeleteOrder(cmd.Context(), id); err != nil {
				return fmt.Errorf("failed to delete order %d: %w", id, err)
			}
			fmt.Fprintf(a.out, "order %d deleted\n", id)
			return nil
		},
	}
}

var errOrderMissing = errors.New("order not found")

func splitOnBoard(board *adminclient.OrderBoard, ids []int64) (present, missing []int64) {
	for _, id := range ids {
		if _, ok := board.Status(id); ok {
			present = append(present, id)
		} else {
			missing = append(missing, id)
		}
	}
	return present, missing
}

func parseOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", raw)
	}
	return id, nil
}

func parseStatus(raw string) (string, error) {
	status := strings.ToUpper(raw)
	if !models.IsValidOrderStatus(status) {
		return "", fmt.Errorf("invalid status %q, expected one of %s", raw, strings.Join(models.OrderStatuses, ", "))
	}
	return status, nil
}
