// Package workpool bounds the number of simultaneous CPU- or I/O-heavy
// operations. A Gate is a fixed-size admission control: work acquires a slot
// before starting and always returns it, including on failure. Gates are
// process-wide, built once at startup, and not reconfigurable per request.
package workpool

import (
	"context"
	"runtime"
)

// DefaultDecryptSlots sizes the decrypt gate to roughly twice the available
// CPU parallelism, with a floor of 5, to keep decryption from thrashing the
// scheduler.
func DefaultDecryptSlots() int {
	n := 2 * runtime.GOMAXPROCS(0)
	if n < 5 {
		n = 5
	}
	return n
}

// DefaultDownloadSlots bounds simultaneous remote-object downloads so that
// neither the remote endpoint nor local memory is overwhelmed by many
// multi-megabyte buffers in flight.
const DefaultDownloadSlots = 8

// Gate is a fixed-size admission gate.
type Gate struct {
	slots chan struct{}
}

// NewGate builds a gate with n slots. n < 1 is coerced to 1.
func NewGate(n int) *Gate {
	if n < 1 {
		n = 1
	}
	return &Gate{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot. Must be paired with a successful Acquire.
func (g *Gate) Release() {
	<-g.slots
}

// Run executes fn on its own goroutine under the gate and waits for the
// result. Offloading keeps blocking CPU work (decryption, markup parsing)
// off the caller's goroutine chain. Once fn has started it runs to
// completion; cancellation only prevents admission, it never frees a slot
// mid-flight.
func (g *Gate) Run(ctx context.Context, fn func() error) error {
	if err := g.Acquire(ctx); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		defer g.Release()
		done <- fn()
	}()
	return <-done
}
