// Package process runs tool command lines as child processes and classifies
// how they failed.
//
// The tool frequently exits non-zero while still printing a usable JSON result,
// so a non-zero exit only fails the call when stdout is empty or carries an
// explicit error marker. Anything written to stderr on an otherwise usable run is
// advisory and never fails the call.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"

	"github.com/Norgate-AV/alv/internal/codes"
	"github.com/Norgate-AV/alv/internal/command"
)

// DefaultMaxBuffer caps captured output per stream.
const DefaultMaxBuffer int64 = 10 << 20

// ErrOutputLimit is returned when a stream exceeds the buffer ceiling.
var ErrOutputLimit = errors.New("captured output exceeded buffer limit")

// Result is the captured outcome of a command that produced usable output.
type Result struct {
	Command  string
	Stdout   string
	Stderr   string
	ExitCode int
}

// Warned reports whether the command exited non-zero but still produced output.
func (r *Result) Warned() bool {
	return r.ExitCode != 0
}

// ExitError is a failure with no usable stdout.
type ExitError struct {
	Command string
	Code    int
	Stderr  string
	Err     error
}

func (e *ExitError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}

	if e.Code > 0 {
		return fmt.Sprintf("command failed (exit code %d: %s): %s", e.Code, codes.GetErrorMessage(e.Code), msg)
	}

	return fmt.Sprintf("command failed: %s", msg)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ToolError is a semantic error the tool reported on stdout.
type ToolError struct {
	Command string
	Code    int
	Output  string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool reported an error (exit code %d): %s", e.Code, firstLine(e.Output, 400))
}

// Output returns the most descriptive text carried by err, if any.
func Output(err error) string {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr.Output
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Stderr != "" {
			return exitErr.Stderr
		}
		if exitErr.Err != nil {
			return exitErr.Err.Error()
		}
	}

	if err != nil {
		return err.Error()
	}

	return ""
}

// IsNotFound reports whether err means the executable could not be located.
func IsNotFound(err error) bool {
	if errors.Is(err, exec.ErrNotFound) {
		return true
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code == codes.NotFound || exitErr.Code == 9009 {
			return true
		}

		return codes.IsCommandNotFound(exitErr.Stderr)
	}

	return false
}

// Runner executes commands.
type Runner interface {
	Run(ctx context.Context, cmd command.Command, opts ...Option) (*Result, error)
}

type runOptions struct {
	maxBuffer int64
}

// Option tunes a single run.
type Option func(*runOptions)

// WithMaxBuffer overrides the captured-output ceiling.
func WithMaxBuffer(n int64) Option {
	return func(o *runOptions) {
		if n > 0 {
			o.maxBuffer = n
		}
	}
}

// MaxBuffer resolves the ceiling opts apply over def.
func MaxBuffer(def int64, opts ...Option) int64 {
	o := runOptions{maxBuffer: def}
	for _, opt := range opts {
		opt(&o)
	}

	return o.maxBuffer
}

// Shell runs command lines through the platform shell so redirection works.
type Shell struct {
	MaxBuffer   int64
	logger      *zap.Logger
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewShell creates a new shell runner
func NewShell(maxBuffer int64, logger *zap.Logger) *Shell {
	if maxBuffer <= 0 {
		maxBuffer = DefaultMaxBuffer
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Shell{
		MaxBuffer:   maxBuffer,
		logger:      logger,
		execCommand: exec.CommandContext,
	}
}

// Run executes cmd and returns its stdout.
func (s *Shell) Run(ctx context.Context, cmd command.Command, opts ...Option) (*Result, error) {
	maxBuffer := MaxBuffer(s.MaxBuffer, opts...)
	line := cmd.String()
	name, flag := shell()

	s.logger.Debug("Running command", zap.String("command", line), zap.Int64("max_buffer", maxBuffer))

	stdout := newLimitedBuffer(maxBuffer)
	stderr := newLimitedBuffer(maxBuffer)

	c := s.execCommand(ctx, name, flag, line)
	c.Stdout = stdout
	c.Stderr = stderr

	err := c.Run()
	if stdout.Exceeded() || stderr.Exceeded() {
		return nil, fmt.Errorf("%s: %w (%d bytes)", line, ErrOutputLimit, maxBuffer)
	}

	res := &Result{
		Command: line,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}

	if err == nil {
		if res.Stderr != "" {
			s.logger.Debug("Ignoring advisory stderr", zap.String("command", line), zap.String("stderr", firstLine(res.Stderr, 200)))
		}

		return res, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return nil, &ExitError{Command: line, Code: -1, Stderr: res.Stderr, Err: err}
	}

	res.ExitCode = exitErr.ExitCode()
	out := strings.TrimSpace(res.Stdout)

	if out == "" {
		// With a redirect the output lives in the target file, not stdout.
		if cmd.Redirect != "" && usableRedirect(cmd.Redirect, res.ExitCode) {
			s.logger.Debug("Command exited non-zero after writing its redirect target, using output",
				zap.String("command", line),
				zap.String("target", cmd.Redirect),
				zap.Int("exit_code", res.ExitCode))

			return res, nil
		}

		return nil, &ExitError{Command: line, Code: res.ExitCode, Stderr: res.Stderr, Err: err}
	}

	if !codes.IsUsable(res.ExitCode) && codes.HasErrorMarker(out) {
		return nil, &ToolError{Command: line, Code: res.ExitCode, Output: res.Stdout}
	}

	s.logger.Debug("Command exited non-zero with output, using output",
		zap.String("command", line),
		zap.Int("exit_code", res.ExitCode))

	return res, nil
}

// redirectPeek bounds how much of a redirect target is scanned for error markers.
const redirectPeek = 64 << 10

// usableRedirect reports whether a redirect target holds output worth keeping
// after a non-zero exit: it is non-empty and does not start with an error.
func usableRedirect(path string, code int) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	head, err := io.ReadAll(io.LimitReader(f, redirectPeek))
	if err != nil {
		return false
	}

	out := strings.TrimSpace(string(head))
	if out == "" {
		return false
	}

	return codes.IsUsable(code) || !codes.HasErrorMarker(out)
}

func shell() (string, string) {
	if runtime.GOOS == "windows" {
		return "cmd", "/C"
	}

	return "sh", "-c"
}

func firstLine(s string, max int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}

	if len(s) > max {
		s = s[:max] + "..."
	}

	return s
}
