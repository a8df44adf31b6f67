package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"storefront/internal/api"
	"storefront/internal/models"

	"github.com/spf13/cobra"
)

func (a *app) tokenCommand() *cobra.Command {
	var (
		subject string
		role    string
		secret  string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for local testing",
		Long: `token signs an HS256 bearer token with the server's AUTH_JWT_SECRET.
It is meant for development environments that share the secret.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if secret == "" {
				secret = os.Getenv("AUTH_JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("a signing secret is required (--secret or AUTH_JWT_SECRET)")
			}
			role = strings.ToUpper(role)
			if role != models.RoleAdmin && role != models.RoleCustomer {
				return fmt.Errorf("invalid role %q", role)
			}
			raw, err := api.SignToken(secret, subject, role, ttl)
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(a.out, raw)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "admin", "Principal id")
	cmd.Flags().StringVar(&role, "role", models.RoleAdmin, "ADMIN or CUSTOMER")
	cmd.Flags().StringVar(&secret, "secret", "", "HMAC secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Token lifetime")
	return cmd
}
