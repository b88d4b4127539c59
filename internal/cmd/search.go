package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search the register",
}

var searchCompaniesCmd = &cobra.Command{
	Use:   "companies <term>",
	Short: "Search companies by name",
	Example: `  chwrapper search companies "acme widgets"
  chwrapper search companies acme --param items_per_page=50 --param start_index=50`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		term := strings.Join(args, " ")
		return runRegistry(cmd, "companies matching "+term, func(ctx context.Context, c *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.SearchCompanies(ctx, term, opts...)
		})
	},
}

var searchOfficersCmd = &cobra.Command{
	Use:   "officers <term>",
	Short: "Search officers, or disqualified officers, by name",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		disqualified, err := cmd.Flags().GetBool("disqualified")
		if err != nil {
			return err
		}
		term := strings.Join(args, " ")
		title := "officers matching " + term
		if disqualified {
			title = "disqualified " + title
		}
		return runRegistry(cmd, title, func(ctx context.Context, c *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.SearchOfficers(ctx, term, disqualified, opts...)
		})
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.AddCommand(searchCompaniesCmd, searchOfficersCmd)

	searchOfficersCmd.Flags().Bool("disqualified", false, "Search disqualified officers")
}
