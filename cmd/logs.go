package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "List, fetch and download debug logs",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the org's debug logs",
		Args:  cobra.NoArgs,
		RunE:  runLogsList,
	}
	listCmd.Flags().Bool("refresh", false, "Ignore the cached listing")
	listCmd.Flags().IntP("limit", "n", 0, "Show at most this many logs")

	getCmd := &cobra.Command{
		Use:   "get <log-id>",
		Short: "Print a log body, or save it with --out",
		Args:  cobra.ExactArgs(1),
		RunE:  runLogsGet,
	}
	getCmd.Flags().String("out", "", "Write the body to this file instead of stdout")

	downloadCmd := &cobra.Command{
		Use:   "download [log-id...]",
		Short: "Download log bodies into the cache",
		RunE:  runLogsDownload,
	}
	downloadCmd.Flags().Bool("all", false, "Download every listed log")

	logsCmd.AddCommand(listCmd, getCmd, downloadCmd)

	return logsCmd
}

func runLogsList(cmd *cobra.Command, args []string) error {
	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	refresh, _ := cmd.Flags().GetBool("refresh")
	limit, _ := cmd.Flags().GetInt("limit")

	logs, err := e.ListLogs(cmd.Context(), "", refresh)
	if err != nil {
		return err
	}

	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}

	return printJSON(cmd.OutOrStdout(), logs)
}

func runLogsGet(cmd *cobra.Command, args []string) error {
	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	if out, _ := cmd.Flags().GetString("out"); out != "" {
		if err := e.ExportLog(cmd.Context(), "", args[0], out); err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "Saved log %s to %s\n", args[0], out)

		return nil
	}

	body, err := e.FetchLog(cmd.Context(), "", args[0])
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), body)

	return err
}

func runLogsDownload(cmd *cobra.Command, args []string) error {
	all, _ := cmd.Flags().GetBool("all")
	if !all && len(args) == 0 {
		return fmt.Errorf("requires at least one log id, or --all")
	}

	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	ids := args
	if all {
		logs, err := e.ListLogs(cmd.Context(), "", false)
		if err != nil {
			return err
		}

		ids = make([]string, 0, len(logs))
		for _, l := range logs {
			ids = append(ids, l.ID)
		}
	}

	results, err := e.DownloadLogs(cmd.Context(), "", ids)
	if results != nil {
		if perr := printJSON(cmd.OutOrStdout(), results); perr != nil {
			return perr
		}
	}

	return err
}
