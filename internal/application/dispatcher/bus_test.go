package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerflow/approval-engine/internal/domain/event"
)

func invoiceEvent(n int) *event.Event {
	return event.New(event.TypeInvoiceApproved, int64(n), "invoice", map[string]interface{}{
		"seq": n,
	})
}

func TestPublishDeliversToAllSubscribers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int64
	for i := 0; i < 5; i++ {
		bus.Subscribe(event.TypeInvoiceApproved, fmt.Sprintf("h%d", i), func(ctx context.Context, evt *event.Event) error {
			count.Add(1)
			return nil
		})
	}

	bus.Publish(context.Background(), invoiceEvent(1))

	assert.Equal(t, int64(5), count.Load())
}

func TestPublishWaitsForHandlers(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var mu sync.Mutex
	var done []string
	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("h%d", i)
		bus.Subscribe(event.TypeInvoiceApproved, name, func(ctx context.Context, evt *event.Event) error {
			mu.Lock()
			done = append(done, name)
			mu.Unlock()
			return nil
		})
	}

	bus.Publish(context.Background(), invoiceEvent(1))

	// Publish must not return before every handler has finished
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, done, 3)
}

func TestPublishIsolatesHandlerFailures(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var healthyRuns atomic.Int64
	bus.Subscribe(event.TypeInvoiceApproved, "failing", func(ctx context.Context, evt *event.Event) error {
		return errors.New("boom")
	})
	bus.Subscribe(event.TypeInvoiceApproved, "panicking", func(ctx context.Context, evt *event.Event) error {
		panic("boom")
	})
	bus.Subscribe(event.TypeInvoiceApproved, "healthy", func(ctx context.Context, evt *event.Event) error {
		healthyRuns.Add(1)
		return nil
	})

	// Must not panic and must still run the healthy handler
	bus.Publish(context.Background(), invoiceEvent(1))
	bus.Publish(context.Background(), invoiceEvent(2))

	assert.Equal(t, int64(2), healthyRuns.Load())
}

func TestUnsubscribe(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	var count atomic.Int64
	unsubscribe := bus.Subscribe(event.TypeInvoiceApproved, "h", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	bus.Publish(context.Background(), invoiceEvent(1))
	unsubscribe()
	bus.Publish(context.Background(), invoiceEvent(2))

	assert.Equal(t, int64(1), count.Load())
	assert.Empty(t, bus.Handlers(event.TypeInvoiceApproved))
}

func TestHistoryRing(t *testing.T) {
	bus := NewBus(WithHistory(3))
	defer bus.Close()

	for i := 1; i <= 5; i++ {
		bus.Publish(context.Background(), invoiceEvent(i))
	}

	history := bus.History()
	require.Len(t, history, 3)

	// Oldest first, capped at capacity: events 3, 4, 5
	for i, evt := range history {
		seq, ok := evt.PayloadInt("seq")
		require.True(t, ok)
		assert.Equal(t, int64(i+3), seq)
	}
}

func TestHistoryDisabled(t *testing.T) {
	bus := NewBus()
	defer bus.Close()

	bus.Publish(context.Background(), invoiceEvent(1))
	assert.Nil(t, bus.History())
}

func TestPublishAfterClose(t *testing.T) {
	bus := NewBus()

	var count atomic.Int64
	bus.Subscribe(event.TypeInvoiceApproved, "h", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	require.NoError(t, bus.Close())
	assert.Error(t, bus.Close())

	bus.Publish(context.Background(), invoiceEvent(1))
	assert.Zero(t, count.Load())
}

func TestConcurrentPublishers(t *testing.T) {
	bus := NewBus(WithHistory(64))
	defer bus.Close()

	var count atomic.Int64
	bus.Subscribe(event.TypeInvoiceApproved, "h", func(ctx context.Context, evt *event.Event) error {
		count.Add(1)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			bus.Publish(context.Background(), invoiceEvent(n))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(20), count.Load())
	assert.Len(t, bus.History(), 20)
}
