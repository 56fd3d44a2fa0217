// Package sf talks to the platform CLI. Every operation is attempted with the
// modern dialect first and the legacy dialect second, and failures are
// classified into errs kinds.
package sf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/codes"
	"github.com/Norgate-AV/alv/internal/command"
	"github.com/Norgate-AV/alv/internal/envelope"
	"github.com/Norgate-AV/alv/internal/errs"
	"github.com/Norgate-AV/alv/internal/fallback"
	"github.com/Norgate-AV/alv/internal/memo"
	"github.com/Norgate-AV/alv/internal/process"
)

const (
	// DefaultMemoTTL bounds how long per-org lookups are reused.
	DefaultMemoTTL = 10 * time.Minute

	installHint = "Install the Salesforce CLI (sf) and make sure it is on your PATH"
	orgHint     = "Authorize an org and select it with 'alv orgs use <alias>'"
)

// Options configures a Client.
type Options struct {
	ModernTool string
	LegacyTool string
	MemoTTL    time.Duration
	Logger     *zap.Logger
}

// Client runs tool operations through a process.Runner.
type Client struct {
	runner  process.Runner
	builder *command.Builder
	logger  *zap.Logger

	userIDs    *memo.Map[string, string]
	defaultOrg *memo.Value[string]
}

// New creates a new tool client
func New(runner process.Runner, opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.MemoTTL <= 0 {
		opts.MemoTTL = DefaultMemoTTL
	}

	return &Client{
		runner:     runner,
		builder:    command.NewBuilder(opts.ModernTool, opts.LegacyTool),
		logger:     opts.Logger,
		userIDs:    memo.NewMap[string, string](opts.MemoTTL),
		defaultOrg: memo.New[string](opts.MemoTTL),
	}
}

// Response is the output of the dialect that succeeded.
type Response struct {
	Dialect command.Dialect
	Result  *process.Result
	Doc     envelope.Document
}

type execOptions struct {
	structured bool
	run        []process.Option
}

// ExecOption tunes Exec.
type ExecOption func(*execOptions)

// RequireStructured treats unparseable output as a failed attempt so the next
// dialect is tried.
func RequireStructured() ExecOption {
	return func(o *execOptions) {
		o.structured = true
	}
}

// WithRunOptions passes options through to the runner.
func WithRunOptions(opts ...process.Option) ExecOption {
	return func(o *execOptions) {
		o.run = append(o.run, opts...)
	}
}

// orgContextError marks a failure caused by a missing or invalid target org.
type orgContextError struct {
	err error
}

func (e *orgContextError) Error() string {
	return e.err.Error()
}

func (e *orgContextError) Unwrap() error {
	return e.err
}

// Exec runs op with the modern dialect and falls back to the legacy dialect.
// An org-context failure stops the chain since the other dialect would fail the
// same way.
func (c *Client) Exec(ctx context.Context, op command.Op, p command.Params, opts ...ExecOption) (*Response, error) {
	o := execOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	strategies := make([]fallback.Strategy[*Response], 0, len(command.Dialects))
	for _, d := range command.Dialects {
		strategies = append(strategies, fallback.Strategy[*Response]{
			Name: d.String(),
			Attempt: func(ctx context.Context) (*Response, error) {
				return c.attempt(ctx, op, p, d, o)
			},
		})
	}

	resp, err := fallback.FirstSuccess(ctx, strategies...)
	if err != nil {
		return nil, c.classify(ctx, op, err)
	}

	if resp.Dialect != command.Modern {
		c.logger.Debug("Operation succeeded with fallback dialect",
			zap.String("op", string(op)),
			zap.Stringer("dialect", resp.Dialect))
	}

	return resp, nil
}

func (c *Client) attempt(ctx context.Context, op command.Op, p command.Params, d command.Dialect, o execOptions) (*Response, error) {
	cmd, err := c.builder.Build(op, p, d)
	if err != nil {
		return nil, fallback.Abort(err)
	}

	res, err := c.runner.Run(ctx, cmd, o.run...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fallback.Abort(ctxErr)
		}

		if codes.IsOrgContextFailure(process.Output(err)) {
			return nil, fallback.Abort(&orgContextError{err: err})
		}

		c.logger.Debug("Dialect attempt failed",
			zap.String("op", string(op)),
			zap.Stringer("dialect", d),
			zap.Error(err))

		return nil, err
	}

	doc := envelope.Parse(res.Stdout)

	if msg, failed := doc.Failure(); failed {
		if codes.IsOrgContextFailure(msg) || codes.IsOrgContextFailure(res.Stdout) {
			return nil, fallback.Abort(&orgContextError{err: errors.New(msg)})
		}

		if _, ok := doc.Result(); !ok {
			return nil, fmt.Errorf("tool reported failure: %s", msg)
		}
	}

	if o.structured && !doc.Structured() {
		return nil, errs.New(errs.MalformedResponse, string(op), "output is not JSON", nil)
	}

	return &Response{Dialect: d, Result: res, Doc: doc}, nil
}

func (c *Client) classify(ctx context.Context, op command.Op, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var classified *errs.Error
	if errors.As(err, &classified) && classified.Kind != errs.MalformedResponse {
		return err
	}

	var orgErr *orgContextError
	orgContext := errors.As(err, &orgErr)

	if orgContext || process.IsNotFound(err) {
		if !c.probe(ctx) {
			return errs.New(errs.ToolUnavailable, string(op), "the CLI could not be run", err).WithHint(installHint)
		}

		if orgContext {
			return errs.New(errs.NoDefaultEnvironment, string(op), "no default org is configured", err).WithHint(orgHint)
		}
	}

	var chain *fallback.ChainError
	if !errors.As(err, &chain) {
		return fmt.Errorf("failed to %s: %w", op, err)
	}

	return errs.New(errs.DialectMismatch, string(op), "neither CLI dialect accepted the command", err)
}

// probe reports whether any dialect of the tool answers a version request.
func (c *Client) probe(ctx context.Context) bool {
	_, err := c.version(ctx)
	if err != nil {
		c.logger.Debug("Version probe failed", zap.Error(err))
		return false
	}

	return true
}

func (c *Client) version(ctx context.Context) (string, error) {
	strategies := make([]fallback.Strategy[string], 0, len(command.Dialects))
	for _, d := range command.Dialects {
		strategies = append(strategies, fallback.Strategy[string]{
			Name: d.String(),
			Attempt: func(ctx context.Context) (string, error) {
				cmd, err := c.builder.Build(command.OpVersion, command.Params{}, d)
				if err != nil {
					return "", err
				}

				res, err := c.runner.Run(ctx, cmd)
				if err != nil {
					return "", err
				}

				return firstLine(res.Stdout), nil
			},
		})
	}

	return fallback.FirstSuccess(ctx, strategies...)
}
