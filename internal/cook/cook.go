// Package cook implements a single cook: one slot that is either idle
// or working a pizza, cooking it in small cancellable ticks rather
// than one long sleep so a kitchen shutdown can interrupt in-progress
// work within one poll interval.
package cook

import (
	"context"
	"sync/atomic"
	"time"

	"plazza/internal/config"
	"plazza/internal/pizza"
)

// CompletionFunc is invoked once a pizza finishes cooking, with the
// wall-clock time the cook spent on it.
type CompletionFunc func(p pizza.Pizza, elapsed time.Duration)

// Cook is one cooking slot inside a kitchen.
type Cook struct {
	id         uint32
	multiplier float64
	busy       atomic.Bool
	cancel     atomic.Pointer[context.CancelFunc]
}

// New creates an idle cook. multiplier scales every pizza's base
// cooking time, taken from reception's time_multiplier CLI argument.
func New(id uint32, multiplier float64) *Cook {
	return &Cook{id: id, multiplier: multiplier}
}

// ID returns the cook's identifier within its kitchen.
func (c *Cook) ID() uint32 { return c.id }

// IsBusy reports whether this cook currently has a pizza assigned.
func (c *Cook) IsBusy() bool { return c.busy.Load() }

// Assign starts cooking p in its own goroutine, calling onComplete
// when done. Assign returns false without starting anything if the
// cook is already busy — callers must check IsBusy or rely on this
// return value to decide whether the assignment succeeded.
func (c *Cook) Assign(ctx context.Context, p pizza.Pizza, onComplete CompletionFunc) bool {
	if !c.busy.CompareAndSwap(false, true) {
		return false
	}

	cookCtx, cancel := context.WithCancel(ctx)
	c.cancel.Store(&cancel)

	go func() {
		start := time.Now()
		c.cookFor(cookCtx, p.CookingSeconds(c.multiplier))
		elapsed := time.Since(start)

		// Clear cancel before releasing busy: a concurrent Assign can only
		// win the CAS below once busy flips false, so storing nil first
		// guarantees it can never clobber that Assign's fresh cancel func.
		c.cancel.Store(nil)
		c.busy.Store(false)

		select {
		case <-cookCtx.Done():
			// cancelled mid-cook (shutdown): no completion is reported,
			// an in-flight pizza is abandoned, not completed, on cancellation.
			return
		default:
		}
		if onComplete != nil {
			onComplete(p, elapsed)
		}
	}()
	return true
}

// cookFor sleeps out totalSeconds in config.PollInterval-sized chunks
// so cancellation lands promptly instead of after one long sleep.
func (c *Cook) cookFor(ctx context.Context, totalSeconds float64) {
	remaining := time.Duration(totalSeconds * float64(time.Second))
	tick := config.PollInterval

	for remaining > 0 {
		step := tick
		if remaining < step {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(step):
			remaining -= step
		}
	}
}

// Cancel interrupts the cook's in-progress pizza, if any. It is a
// no-op when the cook is idle.
func (c *Cook) Cancel() {
	if p := c.cancel.Load(); p != nil {
		(*p)()
	}
}
