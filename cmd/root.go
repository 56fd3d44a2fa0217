package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/config"
	"github.com/Norgate-AV/alv/internal/engine"
	"github.com/Norgate-AV/alv/internal/logging"
	"github.com/Norgate-AV/alv/internal/process"
	"github.com/Norgate-AV/alv/internal/version"
)

var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "alv",
		Short:        "Apex log viewer",
		Long:         `Retrieve, cache and correlate Apex debug logs through the Salesforce CLI`,
		SilenceUsage: true,
		Version:      version.String(),
	}

	root.PersistentFlags().String("tool", "", "Salesforce CLI executable (default \"sf\")")
	root.PersistentFlags().StringP("target-org", "o", "", "Org alias or username (defaults to the CLI's default org)")
	root.PersistentFlags().String("cache-dir", "", "Cache directory (default \".alv-cache\" in the project root)")
	root.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")
	root.PersistentFlags().Bool("debug", false, "Debug logging")

	root.AddCommand(
		newLogsCmd(),
		newOrgsCmd(),
		newTestCmd(),
		newQueryCmd(),
		newClassCmd(),
		newWhoamiCmd(),
		newCacheCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)

	return root
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		os.Exit(1)
	}
}

// newRunner returns the process runner used by the engine. nil selects the
// platform shell.
var newRunner = func(cfg *config.Config, logger *zap.Logger) process.Runner {
	return nil
}

// loadConfig resolves configuration for the project containing the working
// directory
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	cfg, err := config.NewLoader().LoadForProject(cmd, cwd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// openEngine loads configuration and builds an engine. The returned func
// releases it.
func openEngine(cmd *cobra.Command) (*engine.Engine, func(), error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Verbose, cfg.Debug)
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("Loaded config",
		zap.String("tool", cfg.ToolPath),
		zap.String("legacy_tool", cfg.LegacyToolPath),
		zap.String("cache_dir", cfg.CacheDir),
		zap.String("target_org", cfg.TargetOrg))

	e, err := engine.New(cfg, newRunner(cfg, logger), logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}

	return e, func() {
		if err := e.Close(); err != nil {
			logger.Warn("Failed to close engine", zap.Error(err))
		}

		_ = logger.Sync()
	}, nil
}

// targetOrg returns the --target-org flag value
func targetOrg(cmd *cobra.Command) string {
	org, _ := cmd.Flags().GetString("target-org")
	return org
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
