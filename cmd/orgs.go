package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/alv/internal/engine"
)

func newOrgsCmd() *cobra.Command {
	orgsCmd := &cobra.Command{
		Use:   "orgs",
		Short: "List and select authorized orgs",
	}

	orgsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List authorized orgs by category",
			Args:  cobra.NoArgs,
			RunE:  runOrgsList,
		},
		&cobra.Command{
			Use:   "refresh",
			Short: "Refresh the cached org list",
			Args:  cobra.NoArgs,
			RunE:  runOrgsRefresh,
		},
		&cobra.Command{
			Use:   "use <alias>",
			Short: "Make an org the CLI's default",
			Args:  cobra.ExactArgs(1),
			RunE:  runOrgsUse,
		},
	)

	return orgsCmd
}

func runOrgsList(cmd *cobra.Command, args []string) error {
	return withOrgs(cmd, (*engine.Engine).Orgs)
}

func runOrgsRefresh(cmd *cobra.Command, args []string) error {
	return withOrgs(cmd, (*engine.Engine).RefreshOrgs)
}

func withOrgs(cmd *cobra.Command, fn func(*engine.Engine, context.Context) (engine.OrgsResult, error)) error {
	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	res, err := fn(e, cmd.Context())
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), res)
}

func runOrgsUse(cmd *cobra.Command, args []string) error {
	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	org, err := e.SelectOrg(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), org)
}
