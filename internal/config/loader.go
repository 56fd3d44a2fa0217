package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagKeys maps config keys to the command flags that override them
var flagKeys = map[string]string{
	"tool_path":  "tool",
	"target_org": "target-org",
	"cache_dir":  "cache-dir",
	"verbose":    "verbose",
	"debug":      "debug",
}

// Loader handles configuration loading from various sources
type Loader struct{}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadForProject loads configuration for the project containing dir.
// Precedence, lowest first: defaults, global config, local config, ALV_*
// environment variables, command flags.
func (l *Loader) LoadForProject(cmd *cobra.Command, dir string) (*Config, error) {
	l.setupViperDefaults()
	l.loadGlobalConfig()
	l.loadLocalConfig(dir)
	l.bindEnv()
	l.bindCommandFlags(cmd)

	return Load()
}

// setupViperDefaults sets up default values for viper
func (l *Loader) setupViperDefaults() {
	viper.SetDefault("tool_path", DefaultToolPath)
	viper.SetDefault("legacy_tool_path", DefaultLegacyToolPath)
	viper.SetDefault("cache_dir", DefaultCacheDir)
	viper.SetDefault("max_buffer", DefaultMaxBuffer)
	viper.SetDefault("large_max_buffer", DefaultLargeMaxBuffer)
	viper.SetDefault("log_list_ttl", DefaultLogListTTL)
	viper.SetDefault("concurrency", DefaultConcurrency)
	viper.SetDefault("verbose", DefaultVerbose)
	viper.SetDefault("debug", DefaultDebug)
}

// globalConfigDir returns the per-user config directory for alv
func globalConfigDir() string {
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "alv")
	}

	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "alv")
	}

	return ""
}

// loadGlobalConfig loads global configuration from the user config directory
func (l *Loader) loadGlobalConfig() {
	globalDir := globalConfigDir()
	if globalDir == "" {
		return
	}

	for _, ext := range ConfigExtensions {
		globalPath := filepath.Join(globalDir, "config."+ext)

		if _, err := os.Stat(globalPath); err == nil {
			viper.SetConfigFile(globalPath)

			if err := viper.MergeInConfig(); err == nil {
				break
			}
		}
	}
}

// loadLocalConfig loads local configuration from the project directory. The
// directory holding the local config is the project root, and the default
// cache lives there.
func (l *Loader) loadLocalConfig(dir string) {
	if dir == "" {
		return
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return // silently ignore, config.Load() will handle validation
	}

	root := abs

	localPath := FindLocalConfig(abs)
	if localPath != "" {
		viper.SetConfigFile(localPath)
		_ = viper.MergeInConfig()
		root = filepath.Dir(localPath)
	}

	viper.SetDefault("cache_dir", filepath.Join(root, DefaultCacheDir))
}

// bindEnv lets ALV_* environment variables override file configuration
func (l *Loader) bindEnv() {
	viper.SetEnvPrefix("ALV")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// bindCommandFlags binds command flags to viper
func (l *Loader) bindCommandFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	for key, flag := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			_ = viper.BindPFlag(key, f)
		}
	}
}
