// Package refresh guards list refreshes against re-entry.
package refresh

import (
	"context"
	"sync/atomic"
)

// InProgressMessage is reported when a refresh is rejected.
const InProgressMessage = "A refresh is already in progress"

// Outcome reports whether a refresh ran.
type Outcome struct {
	Skipped bool
	Message string
}

// Coordinator allows one refresh at a time. A second request while one is in
// flight is rejected immediately; it is neither queued nor does it cancel the
// first.
type Coordinator struct {
	inFlight atomic.Bool
}

// Run executes fn unless another Run is in flight.
func (c *Coordinator) Run(ctx context.Context, fn func(ctx context.Context) error) (Outcome, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		return Outcome{Skipped: true, Message: InProgressMessage}, nil
	}
	defer c.inFlight.Store(false)

	return Outcome{}, fn(ctx)
}

// Busy reports whether a refresh is in flight.
func (c *Coordinator) Busy() bool {
	return c.inFlight.Load()
}
