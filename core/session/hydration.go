package session

import (
	"context"
	"sync"
)

// Hydration is a one-shot signal: false at creation, set exactly once, never reset.
type Hydration struct {
	once sync.Once
	done chan struct{}
}

// NewHydration returns an unset signal.
func NewHydration() *Hydration {
	return &Hydration{done: make(chan struct{})}
}

// Set flips the signal. Calls after the first are no-ops.
func (h *Hydration) Set() {
	h.once.Do(func() { close(h.done) })
}

// IsSet reports whether Set has been called.
func (h *Hydration) IsSet() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the signal is set.
func (h *Hydration) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the signal is set or ctx is done.
func (h *Hydration) Wait(ctx context.Context) error {
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
