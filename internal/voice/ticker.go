package voice

import (
	"context"
	"time"
)

// DefaultTickInterval is how often elapsed time and playback position are
// refreshed.
const DefaultTickInterval = 100 * time.Millisecond

// ticker is a handle on the single background refresh loop.
type ticker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// tickApply maps a sampled value onto the current state. Returning
// keep=false ends the loop; a nil next with keep=true skips the publish.
type tickApply func(cur State, sample time.Duration) (next State, keep bool)

// startTicker replaces any running ticker with one that calls sample every
// interval and publishes apply's result. Must be called with c.ops held.
func (c *Coordinator) startTicker(sample func() time.Duration, apply tickApply) {
	c.stopTicker()

	ctx, cancel := context.WithCancel(context.Background())
	t := &ticker{cancel: cancel, done: make(chan struct{})}
	c.tick = t

	go func() {
		defer close(t.done)

		tk := time.NewTicker(c.interval)
		defer tk.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
			}

			v := sample()

			c.mu.Lock()
			// re-check under the publish lock: a stop that raced with this
			// tick must win
			if ctx.Err() != nil {
				c.mu.Unlock()
				return
			}

			next, keep := apply(c.cell.Load(), v)
			if keep && next != nil {
				c.cell.Store(next)
			}
			c.mu.Unlock()

			if !keep {
				return
			}
		}
	}()
}

// stopTicker cancels the running ticker and waits for it to exit. After it
// returns no tick can publish. Must be called with c.ops held and c.mu not
// held.
func (c *Coordinator) stopTicker() {
	if c.tick == nil {
		return
	}

	c.tick.cancel()
	<-c.tick.done
	c.tick = nil
}

func clampPosition(pos, duration time.Duration) time.Duration {
	pos = max(pos, 0)
	if duration > 0 {
		pos = min(pos, duration)
	}

	return pos
}
