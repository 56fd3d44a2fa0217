// Package engine is the entry point callers use. It consults the cache first,
// falls back to the tool, and writes results back to the cache.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/cache"
	"github.com/Norgate-AV/alv/internal/config"
	"github.com/Norgate-AV/alv/internal/correlate"
	"github.com/Norgate-AV/alv/internal/logfetch"
	"github.com/Norgate-AV/alv/internal/process"
	"github.com/Norgate-AV/alv/internal/refresh"
	"github.com/Norgate-AV/alv/internal/sf"
)

// Engine wires the tool client, fetcher, correlator and cache together
type Engine struct {
	cfg    *config.Config
	logger *zap.Logger

	client     *sf.Client
	fetcher    *logfetch.Fetcher
	correlator *correlate.Correlator
	store      *cache.Store
	runs       *cache.RunArchive
	orgRefresh refresh.Coordinator

	now func() time.Time
}

// New creates a new engine. Unset fields of cfg take their defaults and the
// result is validated; cfg itself is not modified. A nil runner runs commands
// through the platform shell.
func New(cfg *config.Config, runner process.Runner, logger *zap.Logger) (*Engine, error) {
	resolved := *cfg
	resolved.ApplyDefaults()

	if err := resolved.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg = &resolved

	if logger == nil {
		logger = zap.NewNop()
	}

	if runner == nil {
		runner = process.NewShell(cfg.MaxBuffer, logger.Named("process"))
	}

	store, err := cache.New(cfg.CacheDir, logger.Named("cache"))
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	runs, err := cache.OpenRunArchive(store.Root())
	if err != nil {
		return nil, err
	}

	client := sf.New(runner, sf.Options{
		ModernTool: cfg.ToolPath,
		LegacyTool: cfg.LegacyToolPath,
		Logger:     logger.Named("sf"),
	})

	e := &Engine{
		cfg:    cfg,
		logger: logger,
		client: client,
		fetcher: logfetch.New(client, logfetch.Options{
			TempDir:        cfg.TempDir,
			LargeMaxBuffer: cfg.LargeMaxBuffer,
			Logger:         logger.Named("logfetch"),
		}),
		correlator: correlate.New(client, logger.Named("correlate")),
		store:      store,
		runs:       runs,
		now:        time.Now,
	}

	store.SetClock(func() time.Time { return e.now() })

	return e, nil
}

// Close releases the run archive
func (e *Engine) Close() error {
	return e.runs.Close()
}

// resolveOrg returns org, the configured target org, or the tool's default org,
// in that order.
func (e *Engine) resolveOrg(ctx context.Context, org string) (string, error) {
	if org != "" {
		return org, nil
	}

	if e.cfg.TargetOrg != "" {
		return e.cfg.TargetOrg, nil
	}

	return e.client.DefaultOrg(ctx)
}

// Query runs a query against org
func (e *Engine) Query(ctx context.Context, org, query string, tooling bool) ([]json.RawMessage, error) {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return nil, err
	}

	return e.client.Query(ctx, alias, query, tooling)
}

// ClassBody returns the source of a class
func (e *Engine) ClassBody(ctx context.Context, org, name string) (string, error) {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return "", err
	}

	return e.client.ClassBody(ctx, alias, name)
}

// CurrentUserID returns the id of the user authorized in org
func (e *Engine) CurrentUserID(ctx context.Context, org string) (string, error) {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return "", err
	}

	return e.client.CurrentUserID(ctx, alias)
}

// Version returns the tool version
func (e *Engine) Version(ctx context.Context) (string, error) {
	return e.client.Version(ctx)
}

// ClearCache removes cached state for org, or everything when org is empty
func (e *Engine) ClearCache(org string) error {
	if org != "" {
		return e.store.Clear(org)
	}

	if err := e.store.ClearAll(); err != nil {
		return err
	}

	if err := e.runs.Clear(); err != nil {
		return fmt.Errorf("failed to clear run archive: %w", err)
	}

	return nil
}
