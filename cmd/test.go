package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/alv/internal/correlate"
)

func newTestCmd() *cobra.Command {
	testCmd := &cobra.Command{
		Use:   "test",
		Short: "Run Apex tests and find their logs",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start an asynchronous test run",
		Args:  cobra.NoArgs,
		RunE:  runTestRun,
	}
	runCmd.Flags().StringSliceP("class-names", "n", nil, "Test classes to run")
	runCmd.Flags().StringSliceP("tests", "t", nil, "Test methods to run, as Class.method")

	classesCmd := &cobra.Command{
		Use:   "classes",
		Short: "List test classes and their test methods",
		Args:  cobra.NoArgs,
		RunE:  runTestClasses,
	}
	classesCmd.Flags().Bool("refresh", false, "Ignore the cached index")

	logCmd := &cobra.Command{
		Use:   "log <test-run-id>",
		Short: "Find the log a test run produced and print it",
		Args:  cobra.ExactArgs(1),
		RunE:  runTestLog,
	}
	logCmd.Flags().Bool("match-only", false, "Print the match without fetching the body")

	testCmd.AddCommand(
		runCmd,
		&cobra.Command{
			Use:   "status <test-run-id>",
			Short: "Show the state of a test run",
			Args:  cobra.ExactArgs(1),
			RunE:  runTestStatus,
		},
		logCmd,
		classesCmd,
	)

	return testCmd
}

func runTestRun(cmd *cobra.Command, args []string) error {
	classes, _ := cmd.Flags().GetStringSlice("class-names")
	tests, _ := cmd.Flags().GetStringSlice("tests")

	if len(classes) == 0 && len(tests) == 0 {
		return fmt.Errorf("requires --class-names or --tests")
	}

	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	id, err := e.RunTests(cmd.Context(), "", classes, tests)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), map[string]string{"test_run_id": id})
}

func runTestStatus(cmd *cobra.Command, args []string) error {
	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	run, err := e.PollTestRun(cmd.Context(), "", args[0])
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), run)
}

func runTestLog(cmd *cobra.Command, args []string) error {
	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	if matchOnly, _ := cmd.Flags().GetBool("match-only"); matchOnly {
		m, err := e.CorrelateTestRun(cmd.Context(), "", args[0])
		if err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), m)
	}

	m, body, err := e.TestRunLog(cmd.Context(), "", args[0])
	if err != nil {
		return err
	}

	if !m.Found {
		return fmt.Errorf("no log found for test run %s", args[0])
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Log %s (matched by %s)\n", m.LogID, describeMethod(m.Method))
	_, err = fmt.Fprint(cmd.OutOrStdout(), body)

	return err
}

func describeMethod(m correlate.Method) string {
	switch m {
	case correlate.MethodDirect:
		return "direct reference"
	case correlate.MethodTestOperation:
		return "test operation after start"
	default:
		return "time after start"
	}
}

func runTestClasses(cmd *cobra.Command, args []string) error {
	e, done, err := openEngine(cmd)
	if err != nil {
		return err
	}
	defer done()

	refresh, _ := cmd.Flags().GetBool("refresh")

	classes, err := e.TestClasses(cmd.Context(), "", refresh)
	if err != nil {
		return err
	}

	return printJSON(cmd.OutOrStdout(), classes)
}
