// Package fallback runs a prioritized list of strategies and returns the first
// success. Strategies run strictly in order; a later one is only attempted after
// the previous one has returned its error.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Strategy is one way of producing a T.
type Strategy[T any] struct {
	Name    string
	Attempt func(ctx context.Context) (T, error)
}

// Attempt records a failed strategy.
type Attempt struct {
	Name string
	Err  error
}

// ChainError is returned when every strategy failed.
type ChainError struct {
	Attempts []Attempt
}

func (e *ChainError) Error() string {
	if len(e.Attempts) == 0 {
		return "no strategies to attempt"
	}

	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, fmt.Sprintf("%s attempt failed (%v)", a.Name, a.Err))
	}

	return fmt.Sprintf("all %d attempts failed: %s", len(e.Attempts), strings.Join(parts, "; "))
}

// Unwrap exposes every attempt's error to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		errs = append(errs, a.Err)
	}

	return errs
}

// abortError stops the chain without attempting the remaining strategies.
type abortError struct {
	err error
}

func (e *abortError) Error() string {
	return e.err.Error()
}

func (e *abortError) Unwrap() error {
	return e.err
}

// Abort wraps err so FirstSuccess returns it immediately.
func Abort(err error) error {
	if err == nil {
		return nil
	}

	return &abortError{err: err}
}

// IsAbort reports whether err was produced by Abort.
func IsAbort(err error) bool {
	var a *abortError
	return errors.As(err, &a)
}

// FirstSuccess attempts each strategy in order and returns the first success.
// An aborted attempt is returned unwrapped. If every attempt fails, the result is
// a *ChainError naming each one.
func FirstSuccess[T any](ctx context.Context, strategies ...Strategy[T]) (T, error) {
	var zero T
	chain := &ChainError{}

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			chain.Attempts = append(chain.Attempts, Attempt{Name: s.Name, Err: err})
			return zero, chain
		}

		v, err := s.Attempt(ctx)
		if err == nil {
			return v, nil
		}

		var a *abortError
		if errors.As(err, &a) {
			return zero, a.err
		}

		chain.Attempts = append(chain.Attempts, Attempt{Name: s.Name, Err: err})
	}

	return zero, chain
}
