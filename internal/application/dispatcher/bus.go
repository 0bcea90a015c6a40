package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ledgerflow/approval-engine/internal/domain/event"
)

// Bus is the in-process publish/subscribe hub decoupling the state machine
// from its side effects.
type Bus interface {
	// Subscribe registers a named handler for an event type and returns a
	// function that unsubscribes it
	Subscribe(eventType event.Type, name string, handler Handler) (unsubscribe func())

	// Publish delivers the event to all handlers for its type. Handlers run
	// concurrently; Publish returns once every handler has finished. A
	// handler's error or panic is logged and isolated: it never reaches the
	// publisher or the other handlers.
	Publish(ctx context.Context, evt *event.Event)

	// History returns a snapshot of the bounded event history ring, oldest
	// first. Diagnostic only; empty when history is disabled.
	History() []*event.Event

	// Handlers returns metadata for the handlers of an event type
	Handlers(eventType event.Type) []HandlerInfo

	// Close stops the bus; further publishes are dropped with a log entry
	Close() error
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type eventBus struct {
	mu       sync.RWMutex
	handlers map[event.Type][]HandlerInfo
	logger   Logger

	// bounded history ring; nil when disabled
	history     []*event.Event
	historyNext int
	historyLen  int

	closed atomic.Bool
}

// Option configures the bus
type Option func(*eventBus)

// WithLogger sets a logger for the bus
func WithLogger(logger Logger) Option {
	return func(b *eventBus) {
		b.logger = logger
	}
}

// WithHistory enables the diagnostic history ring with the given capacity.
// A capacity of zero or less disables it.
func WithHistory(capacity int) Option {
	return func(b *eventBus) {
		if capacity > 0 {
			b.history = make([]*event.Event, capacity)
		}
	}
}

// NewBus creates a new event bus
func NewBus(opts ...Option) Bus {
	b := &eventBus{
		handlers: make(map[event.Type][]HandlerInfo),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a named handler and returns its unsubscribe function
func (b *eventBus) Subscribe(eventType event.Type, name string, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], HandlerInfo{
		Name:      name,
		EventType: eventType,
		Handler:   handler,
	})

	if b.logger != nil {
		b.logger.Info("Handler registered",
			"event_type", eventType,
			"handler_name", name,
		)
	}

	return func() { b.unsubscribe(eventType, name) }
}

func (b *eventBus) unsubscribe(eventType event.Type, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := b.handlers[eventType]
	filtered := make([]HandlerInfo, 0, len(handlers))
	for _, h := range handlers {
		if h.Name != name {
			filtered = append(filtered, h)
		}
	}
	b.handlers[eventType] = filtered
}

// Publish delivers the event to every handler concurrently and waits for
// all of them. No handler result reaches the publisher.
func (b *eventBus) Publish(ctx context.Context, evt *event.Event) {
	if b.closed.Load() {
		if b.logger != nil {
			b.logger.Warn("Event dropped, bus is closed",
				"event_type", evt.Type,
				"event_id", evt.ID,
			)
		}
		return
	}

	b.mu.Lock()
	b.record(evt)
	handlers := make([]HandlerInfo, len(b.handlers[evt.Type]))
	copy(handlers, b.handlers[evt.Type])
	b.mu.Unlock()

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, info := range handlers {
		wg.Add(1)
		go func(h HandlerInfo) {
			defer wg.Done()

			if err := b.safeExecute(ctx, evt, h); err != nil && b.logger != nil {
				b.logger.Error("Handler error",
					"event_type", evt.Type,
					"event_id", evt.ID,
					"handler_name", h.Name,
					"error", err,
				)
			}
		}(info)
	}
	wg.Wait()
}

// record appends to the history ring; caller holds the lock
func (b *eventBus) record(evt *event.Event) {
	if b.history == nil {
		return
	}
	b.history[b.historyNext] = evt
	b.historyNext = (b.historyNext + 1) % len(b.history)
	if b.historyLen < len(b.history) {
		b.historyLen++
	}
}

// History returns the retained events, oldest first
func (b *eventBus) History() []*event.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.history == nil || b.historyLen == 0 {
		return nil
	}

	out := make([]*event.Event, 0, b.historyLen)
	start := (b.historyNext - b.historyLen + len(b.history)) % len(b.history)
	for i := 0; i < b.historyLen; i++ {
		out = append(out, b.history[(start+i)%len(b.history)])
	}
	return out
}

// Handlers returns registered handler metadata for an event type
func (b *eventBus) Handlers(eventType event.Type) []HandlerInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	handlers := b.handlers[eventType]
	result := make([]HandlerInfo, len(handlers))
	for i, h := range handlers {
		result[i] = HandlerInfo{Name: h.Name, EventType: h.EventType}
	}
	return result
}

// Close stops the bus
func (b *eventBus) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("bus already closed")
	}
	if b.logger != nil {
		b.logger.Info("Event bus closed")
	}
	return nil
}

// safeExecute runs a handler with panic recovery
func (b *eventBus) safeExecute(ctx context.Context, evt *event.Event, info HandlerInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	return info.Handler(ctx, evt)
}
