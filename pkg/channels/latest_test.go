package channels_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alkime/rapidvoice/pkg/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatest(t *testing.T) {
	t.Run("load and store", func(t *testing.T) {
		cell := channels.NewLatest("idle")
		assert.Equal(t, "idle", cell.Load())

		cell.Store("recording")
		assert.Equal(t, "recording", cell.Load())
	})

	t.Run("watch yields current value first", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cell := channels.NewLatest(7)
		ch, err := cell.Watch(ctx)
		require.NoError(t, err)

		select {
		case v := <-ch:
			assert.Equal(t, 7, v)
		case <-time.After(100 * time.Millisecond):
			t.Fatal("expected initial value")
		}
	})

	t.Run("slow watcher sees only the latest value", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cell := channels.NewLatest(0)
		ch, err := cell.Watch(ctx)
		require.NoError(t, err)

		for i := 1; i <= 5; i++ {
			cell.Store(i)
		}

		assert.Equal(t, 5, <-ch)

		stats := cell.Stats()
		require.Len(t, stats, 1)
		assert.Equal(t, 5, stats[0].Replaced, "initial value plus four stores were replaced")
	})

	t.Run("store never blocks", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cell := channels.NewLatest(0)
		_, err := cell.Watch(ctx)
		require.NoError(t, err)

		start := time.Now()
		for i := 0; i < 1000; i++ {
			cell.Store(i)
		}
		assert.Less(t, time.Since(start), 100*time.Millisecond)
		assert.Equal(t, 999, cell.Load())
	})

	t.Run("context cancel closes watcher", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		cell := channels.NewLatest(0)
		ch, err := cell.Watch(ctx)
		require.NoError(t, err)
		<-ch

		cancel()

		require.Eventually(t, func() bool {
			select {
			case _, ok := <-ch:
				return !ok
			default:
				return false
			}
		}, time.Second, 5*time.Millisecond)
		assert.Empty(t, cell.Stats())
	})

	t.Run("close closes all watchers and rejects new ones", func(t *testing.T) {
		cell := channels.NewLatest(0)

		ch1, err := cell.Watch(context.Background())
		require.NoError(t, err)
		ch2, err := cell.Watch(context.Background())
		require.NoError(t, err)

		cell.Close()
		cell.Close()

		for _, ch := range []<-chan int{ch1, ch2} {
			<-ch // initial value
			_, ok := <-ch
			assert.False(t, ok)
		}

		_, err = cell.Watch(context.Background())
		assert.ErrorIs(t, err, channels.ErrCellClosed)

		cell.Store(3)
		assert.Equal(t, 3, cell.Load())
	})

	t.Run("concurrent stores and watchers", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cell := channels.NewLatest(0)
		wg := sync.WaitGroup{}

		for w := 0; w < 4; w++ {
			ch, err := cell.Watch(ctx)
			require.NoError(t, err)
			wg.Go(func() {
				last := -1
				for v := range ch {
					assert.GreaterOrEqual(t, v, last, "values never go backwards")
					last = v
					if v == 100 {
						return
					}
				}
			})
		}

		for i := 1; i <= 100; i++ {
			cell.Store(i)
		}

		wg.Wait()
	})
}
