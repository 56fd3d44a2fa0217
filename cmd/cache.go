package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local cache",
	}

	clearCmd := &cobra.Command{
		Use:   "clear [alias]",
		Short: "Clear cached state for an org, or everything with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCacheClear,
	}
	clearCmd.Flags().Bool("all", false, "Clear every org and the run archive")

	cacheCmd.AddCommand(clearCmd)

	return cacheCmd
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")

	org := targetOrg(cmd)
	if len(args) == 1 {
		org = args[0]
	}

	if all {
		org = ""
	} else if org == "" {
		return fmt.Errorf("requires an org alias, --target-org or --all")
	}

	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	if err := e.ClearCache(org); err != nil {
		return err
	}

	if org == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "Cleared the cache")
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "Cleared the cache for %s\n", org)
	}

	return nil
}

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})

	return configCmd
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)

	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return enc.Close()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print alv and Salesforce CLI versions",
		Args:  cobra.NoArgs,
		RunE:  runVersion,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Fprintf(cmd.OutOrStdout(), "alv %s\n", cmd.Root().Version)

	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	v, err := e.Version(cmd.Context())
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", v)

	return err
}
