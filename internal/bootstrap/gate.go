package bootstrap

import (
	"context"
	"sync"
)

// Gate is a one-way latch that holds backend calls until the CSRF bootstrap has settled.
//
// It opens exactly once and never closes again. The zero value is not usable; see [NewGate].
type Gate struct {
	once sync.Once
	done chan struct{}
}

// NewGate returns a closed (pending) gate
func NewGate() *Gate {
	return &Gate{done: make(chan struct{})}
}

// Open releases every current and future waiter. Calling it again is a no-op.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.done) })
}

// IsOpen reports whether [Gate.Open] has been called
func (g *Gate) IsOpen() bool {
	select {
	case <-g.done:
		return true
	default:
		return false
	}
}

// Done returns a channel closed when the gate opens
func (g *Gate) Done() <-chan struct{} {
	return g.done
}

// Wait blocks until the gate opens or ctx is done
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
