package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/chwrapper/chwrapper/pkg/companieshouse"
)

var officerCmd = &cobra.Command{
	Use:   "officer",
	Short: "Fetch officer records by officer ID",
}

var officerAppointmentsCmd = &cobra.Command{
	Use:   "appointments <officer-id>",
	Short: "List an officer's appointments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		officerID := args[0]
		return runRegistry(cmd, "appointments "+officerID, func(ctx context.Context, c *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.Appointments(ctx, officerID, opts...)
		})
	},
}

var officerDisqualifiedCmd = &cobra.Command{
	Use:   "disqualified <officer-id>",
	Short: "Fetch a disqualified officer (natural person unless --corporate)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		corporate, err := cmd.Flags().GetBool("corporate")
		if err != nil {
			return err
		}
		officerID := args[0]
		return runRegistry(cmd, "disqualified officer "+officerID, func(ctx context.Context, c *companieshouse.Client, opts ...companieshouse.CallOption) (*companieshouse.Result, error) {
			return c.Disqualified(ctx, officerID, !corporate, opts...)
		})
	},
}

func init() {
	rootCmd.AddCommand(officerCmd)
	officerCmd.AddCommand(officerAppointmentsCmd, officerDisqualifiedCmd)

	officerDisqualifiedCmd.Flags().Bool("corporate", false, "Look up a corporate officer")
}
