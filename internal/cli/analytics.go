package cli

import (
	"fmt"

	"storefront/internal/service"

	"github.com/spf13/cobra"
)

func (a *app) analyticsCommand() *cobra.Command {
	var rangeCode string
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Print the revenue dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, ok := service.RangeDuration(rangeCode); !ok {
				return fmt.Errorf("invalid range %q, expected 7d, 30d, 90d or 1y", rangeCode)
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			snap, err := c.Analytics(cmd.Context(), rangeCode)
			if err != nil {
				return fmt.Errorf("failed to load analytics: %w", err)
			}
			return a.render(snap, func() { a.analyticsView(snap) })
		},
	}
	cmd.Flags().StringVar(&rangeCode, "range", "30d", "Window: 7d, 30d, 90d or 1y")
	return cmd
}
