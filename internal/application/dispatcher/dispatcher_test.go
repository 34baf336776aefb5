package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/travel-desk/internal/domain/event"
)

// recordingLogger implements Logger for testing
type recordingLogger struct {
	mu     sync.Mutex
	infos  []string
	warns  []string
	errors []string
}

func (l *recordingLogger) Info(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch level {
	case "warn":
		return len(l.warns)
	case "error":
		return len(l.errors)
	default:
		return len(l.infos)
	}
}

func newEvent(typ event.Type) *event.Event {
	return event.NewEvent(typ, 1, "TRV-0000ABCD", nil)
}

func TestSubscribeNamed(t *testing.T) {
	t.Run("handlers run in registration order", func(t *testing.T) {
		d := NewDispatcher(WithWorkers(1))

		var order []string
		d.SubscribeNamed(event.TypeTripCreated, "first", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "first")
			return nil
		})
		d.SubscribeNamed(event.TypeTripCreated, "second", func(ctx context.Context, evt *event.Event) error {
			order = append(order, "second")
			return nil
		})

		d.DispatchAsync(context.Background(), newEvent(event.TypeTripCreated))
		require.NoError(t, d.Close())
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("same name replaces the handler", func(t *testing.T) {
		d := NewDispatcher(WithWorkers(1))

		var calls []string
		d.SubscribeNamed(event.TypeTripCreated, "notify", func(ctx context.Context, evt *event.Event) error {
			calls = append(calls, "old")
			return nil
		})
		d.SubscribeNamed(event.TypeTripCreated, "notify", func(ctx context.Context, evt *event.Event) error {
			calls = append(calls, "new")
			return nil
		})

		d.DispatchAsync(context.Background(), newEvent(event.TypeTripCreated))
		require.NoError(t, d.Close())
		assert.Equal(t, []string{"new"}, calls)
		assert.Equal(t, []HandlerInfo{{Name: "notify", EventType: event.TypeTripCreated}},
			d.ListHandlers(event.TypeTripCreated))
	})

	t.Run("no handlers for unknown type", func(t *testing.T) {
		d := NewDispatcher()
		defer d.Close()
		assert.Empty(t, d.ListHandlers(event.TypeTripCreated))
	})
}

func TestDispatchAsync(t *testing.T) {
	t.Run("close drains queued deliveries", func(t *testing.T) {
		d := NewDispatcher(WithWorkers(2), WithQueueSize(16))

		var called atomic.Int32
		for _, name := range []string{"a", "b", "c"} {
			d.SubscribeNamed(event.TypeTripCreated, name, func(ctx context.Context, evt *event.Event) error {
				time.Sleep(5 * time.Millisecond)
				called.Add(1)
				return nil
			})
		}

		for i := 0; i < 5; i++ {
			d.DispatchAsync(context.Background(), newEvent(event.TypeTripCreated))
		}
		require.NoError(t, d.Close())

		assert.EqualValues(t, 15, called.Load())
		assert.Equal(t, Stats{Delivered: 15}, d.Stats())
	})

	t.Run("failures and panics are counted and logged", func(t *testing.T) {
		logger := &recordingLogger{}
		d := NewDispatcher(WithLogger(logger))

		var reached atomic.Bool
		d.SubscribeNamed(event.TypeStatusChanged, "fails", func(ctx context.Context, evt *event.Event) error {
			return errors.New("lark rate limited")
		})
		d.SubscribeNamed(event.TypeStatusChanged, "panics", func(ctx context.Context, evt *event.Event) error {
			panic("nil map")
		})
		d.SubscribeNamed(event.TypeStatusChanged, "ok", func(ctx context.Context, evt *event.Event) error {
			reached.Store(true)
			return nil
		})

		d.DispatchAsync(context.Background(), newEvent(event.TypeStatusChanged))
		require.NoError(t, d.Close())

		assert.True(t, reached.Load())
		assert.Equal(t, Stats{Delivered: 1, Failed: 2}, d.Stats())
		assert.Equal(t, 2, logger.count("error"))
	})

	t.Run("events after close are dropped", func(t *testing.T) {
		logger := &recordingLogger{}
		d := NewDispatcher(WithLogger(logger))

		var called atomic.Int32
		d.SubscribeNamed(event.TypeTripCreated, "count", func(ctx context.Context, evt *event.Event) error {
			called.Add(1)
			return nil
		})
		require.NoError(t, d.Close())

		d.DispatchAsync(context.Background(), newEvent(event.TypeTripCreated))

		assert.Zero(t, called.Load())
		assert.EqualValues(t, 1, d.Stats().Dropped)
		assert.Equal(t, 1, logger.count("warn"))
	})

	t.Run("full queue drops instead of blocking the caller", func(t *testing.T) {
		logger := &recordingLogger{}
		d := NewDispatcher(WithLogger(logger), WithWorkers(1), WithQueueSize(1), WithDrainTimeout(20*time.Millisecond))

		release := make(chan struct{})
		started := make(chan struct{}, 3)
		d.SubscribeNamed(event.TypeTripCreated, "slow", func(ctx context.Context, evt *event.Event) error {
			started <- struct{}{}
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		})

		// One delivery in the worker, one in the queue, the rest have no room.
		d.DispatchAsync(context.Background(), newEvent(event.TypeTripCreated))
		<-started
		d.DispatchAsync(context.Background(), newEvent(event.TypeTripCreated))

		produced := make(chan struct{})
		go func() {
			d.DispatchAsync(context.Background(), newEvent(event.TypeTripCreated))
			d.DispatchAsync(context.Background(), newEvent(event.TypeTripCreated))
			close(produced)
		}()

		select {
		case <-produced:
		case <-time.After(time.Second):
			t.Fatal("DispatchAsync blocked on a full queue")
		}
		assert.EqualValues(t, 2, d.Stats().Dropped)
		assert.Equal(t, 2, logger.count("warn"))

		close(release)
		require.NoError(t, d.Close())
		assert.EqualValues(t, 2, d.Stats().Delivered)
	})
}

type requestKey struct{}

func TestDispatchAsync_Lifetime(t *testing.T) {
	t.Run("handler outlives the caller context but keeps its values", func(t *testing.T) {
		d := NewDispatcher()
		result := make(chan error, 1)
		var seen atomic.Value

		d.SubscribeNamed(event.TypeStatusChanged, "observe", func(ctx context.Context, evt *event.Event) error {
			time.Sleep(30 * time.Millisecond)
			seen.Store(fmt.Sprint(ctx.Value(requestKey{})))
			result <- ctx.Err()
			return nil
		})

		ctx, cancel := context.WithCancel(context.WithValue(context.Background(), requestKey{}, "req-1"))
		d.DispatchAsync(ctx, newEvent(event.TypeStatusChanged))
		cancel()

		assert.NoError(t, <-result)
		assert.Equal(t, "req-1", seen.Load())
		_ = d.Close()
	})

	t.Run("handler timeout bounds each invocation", func(t *testing.T) {
		d := NewDispatcher(WithHandlerTimeout(20 * time.Millisecond))
		result := make(chan error, 1)

		d.SubscribeNamed(event.TypeStatusChanged, "wait", func(ctx context.Context, evt *event.Event) error {
			<-ctx.Done()
			result <- ctx.Err()
			return ctx.Err()
		})

		d.DispatchAsync(context.Background(), newEvent(event.TypeStatusChanged))

		select {
		case err := <-result:
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		case <-time.After(time.Second):
			t.Fatal("handler was never cancelled")
		}
		_ = d.Close()
	})

	t.Run("close cancels handlers still running after drain timeout", func(t *testing.T) {
		logger := &recordingLogger{}
		d := NewDispatcher(
			WithLogger(logger),
			WithHandlerTimeout(time.Minute),
			WithDrainTimeout(20*time.Millisecond),
		)

		d.SubscribeNamed(event.TypeStatusChanged, "stuck", func(ctx context.Context, evt *event.Event) error {
			<-ctx.Done()
			return ctx.Err()
		})

		d.DispatchAsync(context.Background(), newEvent(event.TypeStatusChanged))

		start := time.Now()
		require.NoError(t, d.Close())
		assert.Less(t, time.Since(start), 5*time.Second)
		assert.GreaterOrEqual(t, logger.count("error"), 1)
	})

	t.Run("double close fails", func(t *testing.T) {
		d := NewDispatcher()
		require.NoError(t, d.Close())
		assert.Error(t, d.Close())
	})
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	d := NewDispatcher(WithWorkers(3))
	var called atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			d.SubscribeNamed(event.TypeTripCreated, fmt.Sprintf("handler-%d", id), func(ctx context.Context, evt *event.Event) error {
				called.Add(1)
				return nil
			})
		}(i)
	}
	wg.Wait()
	require.Len(t, d.ListHandlers(event.TypeTripCreated), 10)

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.DispatchAsync(context.Background(), newEvent(event.TypeTripCreated))
		}()
	}
	wg.Wait()
	require.NoError(t, d.Close())

	assert.EqualValues(t, 100, called.Load())
}
