package channels

import (
	"context"
	"sync"
	"sync/atomic"
)

// watcher is a single conflating subscription to a Latest cell.
type watcher[T any] struct {
	ch       chan T
	replaced atomic.Int32
}

// Latest holds the most recent value of T and streams it to watchers.
//
// Watchers receive values on capacity-1 channels. A watcher that has not
// read the previous value has it replaced by the newer one, so slow
// readers always observe the latest value and never block Store.
//
// All sends and closes happen under the cell's lock, which makes Latest
// the single sender of every watcher channel.
type Latest[T any] struct {
	mu       sync.RWMutex
	value    T
	watchers map[int]*watcher[T]
	nextID   int
	closed   bool
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewLatest creates a cell holding initial.
func NewLatest[T any](initial T) *Latest[T] {
	return &Latest[T]{
		value:    initial,
		watchers: make(map[int]*watcher[T]),
		done:     make(chan struct{}),
	}
}

// Load returns the current value.
func (l *Latest[T]) Load() T {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.value
}

// Store replaces the current value and publishes it to every watcher.
// Store on a closed cell still updates the value but publishes nothing.
func (l *Latest[T]) Store(v T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.value = v
	if l.closed {
		return
	}

	for _, w := range l.watchers {
		replaced, _ := Replace(w.ch, v)
		if replaced {
			w.replaced.Add(1)
		}
	}
}

// Watch returns a channel that immediately yields the current value and
// then every later value, conflated. The channel is closed when ctx is
// done or the cell is closed.
func (l *Latest[T]) Watch(ctx context.Context) (<-chan T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, ErrCellClosed
	}

	id := l.nextID
	l.nextID++

	w := &watcher[T]{ch: make(chan T, 1)}
	w.ch <- l.value
	l.watchers[id] = w

	l.wg.Go(func() {
		select {
		case <-ctx.Done():
		case <-l.done:
		}

		l.mu.Lock()
		defer l.mu.Unlock()

		if _, ok := l.watchers[id]; ok {
			delete(l.watchers, id)
			close(w.ch)
		}
	})

	return w.ch, nil
}

// Close closes every watcher channel and rejects new watchers.
// Multiple calls are safe.
func (l *Latest[T]) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.done)
	l.mu.Unlock()

	l.wg.Wait()
}

// WatcherStats describes one live watcher.
type WatcherStats struct {
	Replaced int
}

// Stats reports per-watcher replacement counts for live watchers.
func (l *Latest[T]) Stats() []WatcherStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make([]WatcherStats, 0, len(l.watchers))
	for _, w := range l.watchers {
		stats = append(stats, WatcherStats{Replaced: int(w.replaced.Load())})
	}

	return stats
}
