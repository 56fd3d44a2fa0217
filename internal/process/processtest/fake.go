// Package processtest provides a scriptable process.Runner for tests.
package processtest

import (
	"context"
	"sync"

	"github.com/Norgate-AV/alv/internal/command"
	"github.com/Norgate-AV/alv/internal/process"
)

// Call is one recorded invocation.
type Call struct {
	Command   command.Command
	MaxBuffer int64
}

// Handler answers a command.
type Handler func(ctx context.Context, cmd command.Command) (*process.Result, error)

// Runner records every command and answers with Handler.
type Runner struct {
	Handler Handler

	mu    sync.Mutex
	calls []Call
}

// New returns a runner answering with h.
func New(h Handler) *Runner {
	return &Runner{Handler: h}
}

// Run records cmd and delegates to Handler.
func (r *Runner) Run(ctx context.Context, cmd command.Command, opts ...process.Option) (*process.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Command: cmd, MaxBuffer: process.MaxBuffer(0, opts...)})
	r.mu.Unlock()

	if r.Handler == nil {
		return OK("")
	}

	return r.Handler(ctx, cmd)
}

// Calls returns a copy of the recorded calls.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Call(nil), r.calls...)
}

// CallsFor returns the recorded calls for op.
func (r *Runner) CallsFor(op command.Op) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Command.Op == op {
			out = append(out, c)
		}
	}

	return out
}

// Reset forgets recorded calls.
func (r *Runner) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = nil
}

// OK is a successful run printing stdout.
func OK(stdout string) (*process.Result, error) {
	return &process.Result{Stdout: stdout}, nil
}

// Fail is a run that exited with code and printed nothing on stdout.
func Fail(code int, stderr string) (*process.Result, error) {
	return nil, &process.ExitError{Code: code, Stderr: stderr}
}

// ToolFail is a run whose stdout carried an error marker.
func ToolFail(code int, output string) (*process.Result, error) {
	return nil, &process.ToolError{Code: code, Output: output}
}
