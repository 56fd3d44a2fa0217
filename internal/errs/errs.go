// Package errs defines the classified failures the engine surfaces to callers.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	Unknown Kind = iota
	ToolUnavailable
	NoDefaultEnvironment
	DialectMismatch
	MalformedResponse
	TempFileFailure
	CacheCorruption
)

func (k Kind) String() string {
	switch k {
	case ToolUnavailable:
		return "tool unavailable"
	case NoDefaultEnvironment:
		return "no default environment"
	case DialectMismatch:
		return "dialect mismatch"
	case MalformedResponse:
		return "malformed response"
	case TempFileFailure:
		return "temp file failure"
	case CacheCorruption:
		return "cache corruption"
	default:
		return "unknown"
	}
}

// Error is a classified failure. Msg is a single English sentence; Hint, when set,
// tells the user how to recover.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Hint string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}

	if e.Op != "" {
		msg = e.Op + ": " + msg
	}

	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}

	if e.Hint != "" {
		msg = msg + ". " + e.Hint
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error.
func New(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// WithHint sets the remediation hint and returns e.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
