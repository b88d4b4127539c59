package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

var companyCmd = &cobra.Command{
	Use:   "company",
	Short: "Fetch company records by company number",
}

// companyResource builds a subcommand taking a company number and calling
// method, a client method expression such as (*companieshouse.Client).Profile.
func companyResource(use, short, title string, method func(c *companieshouse.Client, ctx context.Context, number string, opts ...companieshouse.CallOption) (*companieshouse.Result, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <company-number>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			number := args[0]
			return runRegistry(cmd, title+" "+number, func(ctx context.Context, c *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error) {
				return method(c, ctx, number, opts...)
			})
		},
	}
}

var companyFilingsCmd = &cobra.Command{
	Use:   "filings <company-number>",
	Short: "List filing history, or one filing with --transaction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transaction, err := cmd.Flags().GetString("transaction")
		if err != nil {
			return err
		}
		number := args[0]
		return runRegistry(cmd, "filing history "+number, func(ctx context.Context, c *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.FilingHistory(ctx, number, transaction, opts...)
		})
	},
}

var companyChargesCmd = &cobra.Command{
	Use:   "charges <company-number>",
	Short: "List charges, or one charge with --charge",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		chargeID, err := cmd.Flags().GetString("charge")
		if err != nil {
			return err
		}
		number := args[0]
		return runRegistry(cmd, "charges "+number, func(ctx context.Context, c *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.Charges(ctx, number, chargeID, opts...)
		})
	},
}

var companyPSCCmd = &cobra.Command{
	Use:   "psc <company-number>",
	Short: "List persons with significant control, or their statements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		statements, err := cmd.Flags().GetBool("statements")
		if err != nil {
			return err
		}
		number := args[0]
		title := "persons with significant control " + number
		if statements {
			title = "significant control statements " + number
		}
		return runRegistry(cmd, title, func(ctx context.Context, c *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.PersonsSignificantControl(ctx, number, statements, opts...)
		})
	},
}

var companySignificantControlCmd = &cobra.Command{
	Use:   "significant-control <company-number> <entity-id>",
	Short: "Fetch one person or entity with significant control",
	Long: `Fetch one person or entity with significant control.

--type selects the entity kind: individual (default), corporate, legal,
statements or secure.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType, err := cmd.Flags().GetString("type")
		if err != nil {
			return err
		}
		number, entityID := args[0], args[1]
		return runRegistry(cmd, "significant control "+entityID, func(ctx context.Context, c *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.SignificantControl(ctx, number, entityID, entityType, opts...)
		})
	},
}

func init() {
	rootCmd.AddCommand(companyCmd)

	companyCmd.AddCommand(
		companyResource("profile", "Fetch the company profile", "company", (*companieshouse.Client).Profile),
		companyResource("address", "Fetch the registered office address", "registered office", (*companieshouse.Client).RegisteredOfficeAddress),
		companyResource("insolvency", "Fetch insolvency records", "insolvency", (*companieshouse.Client).Insolvency),
		companyResource("officers", "List company officers", "officers", (*companieshouse.Client).Officers),
		companyFilingsCmd,
		companyChargesCmd,
		companyPSCCmd,
		companySignificantControlCmd,
	)

	companyFilingsCmd.Flags().String("transaction", "", "Filing transaction ID")
	companyChargesCmd.Flags().String("charge", "", "Charge ID")
	companyPSCCmd.Flags().Bool("statements", false, "List statements instead of persons")
	companySignificantControlCmd.Flags().String("type", companieshouse.EntityIndividual, "Entity type: individual, corporate, legal, statements, secure")
}
