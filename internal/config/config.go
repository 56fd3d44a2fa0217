package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values
const (
	DefaultToolPath             = "sf"
	DefaultLegacyToolPath       = "sfdx"
	DefaultCacheDir             = ".alv-cache"
	DefaultMaxBuffer      int64 = 10 << 20
	DefaultLargeMaxBuffer int64 = 256 << 20
	DefaultLogListTTL           = 5 * time.Minute
	DefaultConcurrency          = 4
	DefaultVerbose              = false
	DefaultDebug                = false
)

// Holds the configuration options for alv
type Config struct {
	// Modern CLI executable (name on PATH or path)
	ToolPath string `yaml:"tool_path"`

	// Legacy CLI executable
	LegacyToolPath string `yaml:"legacy_tool_path"`

	// Org alias used instead of the CLI default
	TargetOrg string `yaml:"target_org,omitempty"`

	// Directory holding the JSON cache and downloaded logs
	CacheDir string `yaml:"cache_dir"`

	// Directory for redirect temp files
	TempDir string `yaml:"temp_dir"`

	// Captured output ceiling for ordinary commands, in bytes
	MaxBuffer int64 `yaml:"max_buffer"`

	// Captured output ceiling when fetching log bodies in memory
	LargeMaxBuffer int64 `yaml:"large_max_buffer"`

	// How long a cached log listing is reused
	LogListTTL time.Duration `yaml:"log_list_ttl"`

	// Parallel log downloads
	Concurrency int `yaml:"concurrency"`

	// Enable verbose output
	Verbose bool `yaml:"verbose"`

	// Enable debug logging
	Debug bool `yaml:"debug"`
}

func Load() (*Config, error) {
	cfg := &Config{
		ToolPath:       viper.GetString("tool_path"),
		LegacyToolPath: viper.GetString("legacy_tool_path"),
		TargetOrg:      viper.GetString("target_org"),
		CacheDir:       viper.GetString("cache_dir"),
		TempDir:        viper.GetString("temp_dir"),
		MaxBuffer:      viper.GetInt64("max_buffer"),
		LargeMaxBuffer: viper.GetInt64("large_max_buffer"),
		LogListTTL:     viper.GetDuration("log_list_ttl"),
		Concurrency:    viper.GetInt("concurrency"),
		Verbose:        viper.GetBool("verbose"),
		Debug:          viper.GetBool("debug"),
	}

	if !viper.IsSet("log_list_ttl") {
		cfg.LogListTTL = DefaultLogListTTL
	}

	cfg.ApplyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills unset fields with their defaults. A zero LogListTTL is
// kept: it disables reuse of the cached log listing.
func (c *Config) ApplyDefaults() {
	if c.ToolPath == "" {
		c.ToolPath = DefaultToolPath
	}

	if c.LegacyToolPath == "" {
		c.LegacyToolPath = DefaultLegacyToolPath
	}

	if c.CacheDir == "" {
		c.CacheDir = DefaultCacheDir
	}

	if c.TempDir == "" {
		c.TempDir = os.TempDir()
	}

	if c.MaxBuffer == 0 {
		c.MaxBuffer = DefaultMaxBuffer
	}

	if c.LargeMaxBuffer == 0 {
		c.LargeMaxBuffer = DefaultLargeMaxBuffer
	}

	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
}

func (c *Config) Validate() error {
	// Bare executable names are looked up on PATH
	if isPath(c.ToolPath) {
		if abs, err := filepath.Abs(c.ToolPath); err == nil {
			c.ToolPath = abs
		}
	}

	if isPath(c.LegacyToolPath) {
		if abs, err := filepath.Abs(c.LegacyToolPath); err == nil {
			c.LegacyToolPath = abs
		}
	}

	abs, err := filepath.Abs(c.CacheDir)
	if err != nil {
		return fmt.Errorf("invalid cache directory: %v", err)
	}

	c.CacheDir = abs

	abs, err = filepath.Abs(c.TempDir)
	if err != nil {
		return fmt.Errorf("invalid temp directory: %v", err)
	}

	c.TempDir = abs

	if c.MaxBuffer <= 0 {
		return fmt.Errorf("max_buffer must be positive, got %d", c.MaxBuffer)
	}

	if c.LargeMaxBuffer < c.MaxBuffer {
		return fmt.Errorf("large_max_buffer (%d) must not be smaller than max_buffer (%d)", c.LargeMaxBuffer, c.MaxBuffer)
	}

	if c.LogListTTL < 0 {
		return fmt.Errorf("log_list_ttl must not be negative, got %s", c.LogListTTL)
	}

	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}

	return nil
}

func isPath(tool string) bool {
	return strings.ContainsAny(tool, `/\`)
}
