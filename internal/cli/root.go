// Package cli implements storefrontctl, the operator CLI for the storefront
// admin API.
package cli

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"storefront/internal/adminclient"

	"github.com/spf13/cobra"
)

type app struct {
	configFile string
	out        io.Writer
	settings   *Settings
	httpClient *http.Client
}

// NewRootCommand builds the command tree writing to out. httpClient may be nil.
func NewRootCommand(out io.Writer, httpClient *http.Client) *cobra.Command {
	a := &app{out: out, httpClient: httpClient}

	root := &cobra.Command{
		Use:   "storefrontctl",
		Short: "Operate a storefront deployment",
		Long: `storefrontctl talks to the storefront admin API. It lists and inspects
orders, moves them through fulfillment one at a time or in bulk, and prints
the revenue dashboard.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			s, err := LoadSettings(a.configFile, cmd.Flags())
			if err != nil {
				return err
			}
			a.settings = s
			return nil
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "Config file (default ./storefrontctl.yaml or $HOME/.storefront/storefrontctl.yaml)")
	pf.String("server", "", "Storefront API base URL")
	pf.String("token", "", "Admin bearer token")
	pf.Duration("timeout", 0, "Per-request timeout")
	pf.StringP("output", "o", "", "Output format: table or json")

	root.AddCommand(a.ordersCommand(), a.analyticsCommand(), a.tokenCommand())
	return root
}

func (a *app) client() (*adminclient.Client, error) {
	if a.settings.Token == "" {
		return nil, fmt.Errorf("an admin token is required (--token or STOREFRONT_TOKEN)")
	}
	httpClient := a.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: a.settings.Timeout}
	}
	return adminclient.New(a.settings.Server, a.settings.Token, httpClient), nil
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand(os.Stdout, nil).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
