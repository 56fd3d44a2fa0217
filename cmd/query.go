package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	queryCmd := &cobra.Command{
		Use:   "query <soql>",
		Short: "Run a SOQL query and print the records",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuery,
	}
	queryCmd.Flags().BoolP("use-tooling-api", "t", false, "Query the Tooling API")

	return queryCmd
}

func runQuery(cmd *cobra.Command, args []string) error {
	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	tooling, _ := cmd.Flags().GetBool("use-tooling-api")

	records, err := e.Query(cmd.Context(), "", args[0], tooling)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), records)
}

func newClassCmd() *cobra.Command {
	classCmd := &cobra.Command{
		Use:   "class",
		Short: "Inspect Apex classes",
	}

	classCmd.AddCommand(&cobra.Command{
		Use:   "body <name>",
		Short: "Print the source of a class",
		Args:  cobra.ExactArgs(1),
		RunE:  runClassBody,
	})

	return classCmd
}

func runClassBody(cmd *cobra.Command, args []string) error {
	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	body, err := e.ClassBody(cmd.Context(), "", args[0])
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), body)

	return err
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the id of the user authorized in the org",
		Args:  cobra.NoArgs,
		RunE:  runWhoami,
	}
}

func runWhoami(cmd *cobra.Command, args []string) error {
	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	id, err := e.CurrentUserID(cmd.Context(), "")
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), id)

	return err
}
