// Package logfetch retrieves log bodies that may be far larger than the
// default captured-output ceiling.
package logfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/command"
	"github.com/Norgate-AV/alv/internal/envelope"
	"github.com/Norgate-AV/alv/internal/errs"
	"github.com/Norgate-AV/alv/internal/fallback"
	"github.com/Norgate-AV/alv/internal/process"
	"github.com/Norgate-AV/alv/internal/sf"
	"github.com/Norgate-AV/alv/internal/utils"
)

// DefaultLargeMaxBuffer is the output ceiling for the in-memory strategy.
const DefaultLargeMaxBuffer int64 = 256 << 20

// Executor runs a tool operation. *sf.Client satisfies it.
type Executor interface {
	Exec(ctx context.Context, op command.Op, p command.Params, opts ...sf.ExecOption) (*sf.Response, error)
}

// Options configures a Fetcher.
type Options struct {
	TempDir        string
	LargeMaxBuffer int64
	Logger         *zap.Logger
}

// Fetcher downloads log bodies, trying a file redirect first, then the JSON
// envelope, then raw output.
type Fetcher struct {
	exec           Executor
	tempDir        string
	largeMaxBuffer int64
	logger         *zap.Logger
	now            func() time.Time
}

// New creates a new log fetcher
func New(exec Executor, opts Options) *Fetcher {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}

	if opts.LargeMaxBuffer <= 0 {
		opts.LargeMaxBuffer = DefaultLargeMaxBuffer
	}

	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Fetcher{
		exec:           exec,
		tempDir:        opts.TempDir,
		largeMaxBuffer: opts.LargeMaxBuffer,
		logger:         opts.Logger,
		now:            time.Now,
	}
}

// Fetch returns the full body of the log with the given id.
func (f *Fetcher) Fetch(ctx context.Context, org, logID string) (string, error) {
	if logID == "" {
		return "", fmt.Errorf("failed to fetch log: log id is required")
	}

	strategies := []fallback.Strategy[string]{
		{Name: "redirect", Attempt: func(ctx context.Context) (string, error) {
			return f.viaRedirect(ctx, org, logID)
		}},
		{Name: "envelope", Attempt: func(ctx context.Context) (string, error) {
			return f.viaEnvelope(ctx, org, logID)
		}},
		{Name: "raw", Attempt: func(ctx context.Context) (string, error) {
			return f.viaRaw(ctx, org, logID)
		}},
	}

	body, err := fallback.FirstSuccess(ctx, strategies...)
	if err != nil {
		return "", fmt.Errorf("failed to fetch log %s: %w", logID, err)
	}

	return body, nil
}

// TempName returns a collision-resistant temp file name for logID.
func (f *Fetcher) TempName(logID string) string {
	return fmt.Sprintf("alv-%s-%d-%s.log", utils.SafeName(logID), f.now().UnixMilli(), uuid.NewString()[:8])
}

func (f *Fetcher) viaRedirect(ctx context.Context, org, logID string) (string, error) {
	path := filepath.Join(f.tempDir, f.TempName(logID))

	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.logger.Warn("Failed to remove temp file", zap.String("path", path), zap.Error(err))
		}
	}()

	_, err := f.exec.Exec(ctx, command.OpGetLog, command.Params{
		TargetOrg: org,
		LogID:     logID,
		Raw:       true,
		Redirect:  path,
	})
	if err != nil {
		return "", stop(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", errs.New(errs.TempFileFailure, string(command.OpGetLog), "redirected output could not be read", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return "", errors.New("redirected output is empty")
	}

	body := string(data)

	// Some tool versions ignore the raw request and still print an envelope.
	if doc := envelope.Parse(body); doc.Structured() {
		if log, ok := doc.String("log"); ok {
			return log, nil
		}
	}

	return body, nil
}

func (f *Fetcher) viaEnvelope(ctx context.Context, org, logID string) (string, error) {
	resp, err := f.exec.Exec(ctx, command.OpGetLog, command.Params{TargetOrg: org, LogID: logID}, sf.RequireStructured())
	if err != nil {
		return "", stop(err)
	}

	log, ok := resp.Doc.String("log")
	if !ok {
		return "", errs.New(errs.MalformedResponse, string(command.OpGetLog), "no log body in output", nil)
	}

	return log, nil
}

func (f *Fetcher) viaRaw(ctx context.Context, org, logID string) (string, error) {
	resp, err := f.exec.Exec(ctx, command.OpGetLog, command.Params{TargetOrg: org, LogID: logID, Raw: true},
		sf.WithRunOptions(process.WithMaxBuffer(f.largeMaxBuffer)))
	if err != nil {
		return "", stop(err)
	}

	if len(bytes.TrimSpace([]byte(resp.Result.Stdout))) == 0 {
		return "", errors.New("raw output is empty")
	}

	return resp.Result.Stdout, nil
}

// stop aborts the remaining strategies for failures no other strategy can fix.
func stop(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
		errs.Is(err, errs.ToolUnavailable) || errs.Is(err, errs.NoDefaultEnvironment) {
		return fallback.Abort(err)
	}

	return err
}
