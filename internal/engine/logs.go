package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Norgate-AV/alv/internal/cache"
	"github.com/Norgate-AV/alv/internal/models"
)

// ListLogs returns the org's log index. A cached index younger than the
// configured TTL is reused unless refresh is set.
func (e *Engine) ListLogs(ctx context.Context, org string, refresh bool) ([]models.LogEntity, error) {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return nil, err
	}

	if !refresh {
		if rec := e.store.Get(alias); rec.Fresh(e.cfg.LogListTTL, e.now()) {
			e.logger.Debug("Using cached log index", zap.String("org", alias), zap.Int("count", len(rec.Logs)))
			return rec.Logs, nil
		}
	}

	logs, err := e.client.ListLogs(ctx, alias)
	if err != nil {
		return nil, err
	}

	rec, err := e.store.Put(alias, cache.WithLogs(logs, e.now()))
	if err != nil {
		e.logger.Warn("Failed to cache log index", zap.String("org", alias), zap.Error(err))
		return logs, nil
	}

	return rec.Logs, nil
}

// FetchLog returns a log body, reading the local copy when one was downloaded
// before.
func (e *Engine) FetchLog(ctx context.Context, org, id string) (string, error) {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return "", err
	}

	if path, ok := e.store.Get(alias).Path(id); ok {
		body, err := cache.ReadLogBody(path)
		if err == nil {
			return body, nil
		}

		e.logger.Debug("Local copy unreadable, fetching again", zap.String("log", id), zap.Error(err))
	}

	body, err := e.fetcher.Fetch(ctx, alias, id)
	if err != nil {
		return "", err
	}

	path, err := e.store.SaveLogBody(alias, id, body)
	if err != nil {
		e.logger.Warn("Failed to save log body", zap.String("log", id), zap.Error(err))
		return body, nil
	}

	if _, err := e.store.Put(alias, cache.MarkDownloaded(id, path)); err != nil {
		e.logger.Warn("Failed to record download", zap.String("log", id), zap.Error(err))
	}

	return body, nil
}

// Download is the outcome of downloading one log
type Download struct {
	ID     string `json:"id"`
	Path   string `json:"path,omitempty"`
	Cached bool   `json:"cached,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DownloadLogs saves the bodies of ids locally, fetching up to the configured
// concurrency in parallel. Logs already downloaded are not fetched again. The
// cache record is updated once, after every fetch has finished.
func (e *Engine) DownloadLogs(ctx context.Context, org string, ids []string) ([]Download, error) {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return nil, err
	}

	rec := e.store.Get(alias)
	results := make([]Download, len(ids))
	failures := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for i, id := range ids {
		results[i].ID = id

		if path, ok := rec.Path(id); ok {
			results[i].Path = path
			results[i].Cached = true
			continue
		}

		g.Go(func() error {
			body, err := e.fetcher.Fetch(gctx, alias, id)
			if err == nil {
				results[i].Path, err = e.store.SaveLogBody(alias, id, body)
			}

			if err != nil {
				results[i].Error = err.Error()
				failures[i] = fmt.Errorf("log %s: %w", id, err)
			}

			// one failed log must not cancel the others
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var patches []cache.Patch
	for _, r := range results {
		if r.Path != "" && !r.Cached {
			patches = append(patches, cache.MarkDownloaded(r.ID, r.Path))
		}
	}

	if len(patches) > 0 {
		if _, err := e.store.Put(alias, patches...); err != nil {
			return results, fmt.Errorf("failed to record downloads: %w", err)
		}
	}

	e.logger.Info("Downloaded logs", zap.String("org", alias), zap.Int("requested", len(ids)), zap.Int("fetched", len(patches)))

	return results, errors.Join(failures...)
}

// ExportLog copies a log body to dest, downloading it first when needed
func (e *Engine) ExportLog(ctx context.Context, org, id, dest string) error {
	alias, err := e.resolveOrg(ctx, org)
	if err != nil {
		return err
	}

	if _, err := e.FetchLog(ctx, alias, id); err != nil {
		return err
	}

	path, ok := e.store.Get(alias).Path(id)
	if !ok {
		return fmt.Errorf("log %s was fetched but not saved locally", id)
	}

	return cache.ExportLog(path, dest)
}
