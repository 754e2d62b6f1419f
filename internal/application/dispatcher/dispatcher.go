// Package dispatcher routes domain events to registered handlers. Handlers
// run after the workflow transaction commits; a failing or panicking handler
// is logged and never affects the committed transition.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/omc-erp/approval-engine/internal/domain/event"
)

// Handler processes a domain event.
type Handler func(ctx context.Context, evt *event.Event) error

// Logger is the minimal logging dependency the dispatcher needs.
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Dispatcher routes events to handlers.
type Dispatcher interface {
	// Subscribe registers a named handler for an event type.
	Subscribe(eventType event.Type, name string, handler Handler)

	// Dispatch sends the event to all handlers synchronously, in
	// registration order; the first handler error aborts the chain.
	Dispatch(ctx context.Context, evt *event.Event) error

	// DispatchAsync sends the event to handlers without waiting. Handler
	// errors are logged only.
	DispatchAsync(ctx context.Context, evt *event.Event)

	// Close stops accepting events and waits for async handlers to drain.
	Close() error
}

type registration struct {
	name    string
	handler Handler
}

type eventDispatcher struct {
	mu       sync.RWMutex
	handlers map[event.Type][]registration
	logger   Logger

	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures the dispatcher.
type Option func(*eventDispatcher)

// WithLogger sets a logger for the dispatcher.
func WithLogger(logger Logger) Option {
	return func(d *eventDispatcher) { d.logger = logger }
}

// New creates an event dispatcher.
func New(opts ...Option) Dispatcher {
	d := &eventDispatcher{handlers: make(map[event.Type][]registration)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *eventDispatcher) Subscribe(eventType event.Type, name string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = append(d.handlers[eventType], registration{name: name, handler: handler})
	if d.logger != nil {
		d.logger.Info("Handler registered", "event_type", eventType, "handler", name)
	}
}

func (d *eventDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	if d.closed.Load() {
		return fmt.Errorf("dispatcher is closed")
	}

	d.mu.RLock()
	handlers := d.handlers[evt.Type]
	d.mu.RUnlock()

	for _, reg := range handlers {
		if err := d.safeExecute(ctx, evt, reg); err != nil {
			if d.logger != nil {
				d.logger.Error("Handler error",
					"event_type", evt.Type, "event_id", evt.ID, "handler", reg.name, "error", err)
			}
			return fmt.Errorf("handler %s failed: %w", reg.name, err)
		}
	}
	return nil
}

func (d *eventDispatcher) DispatchAsync(ctx context.Context, evt *event.Event) {
	if d.closed.Load() {
		if d.logger != nil {
			d.logger.Error("Dropping event, dispatcher is closed",
				"event_type", evt.Type, "event_id", evt.ID)
		}
		return
	}

	d.mu.RLock()
	handlers := d.handlers[evt.Type]
	d.mu.RUnlock()

	for _, reg := range handlers {
		d.wg.Add(1)
		go func(r registration) {
			defer d.wg.Done()
			if err := d.safeExecute(ctx, evt, r); err != nil && d.logger != nil {
				d.logger.Error("Async handler error",
					"event_type", evt.Type, "event_id", evt.ID, "handler", r.name, "error", err)
			}
		}(reg)
	}
}

func (d *eventDispatcher) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return fmt.Errorf("dispatcher already closed")
	}
	d.wg.Wait()
	return nil
}

// safeExecute runs a handler with panic recovery.
func (d *eventDispatcher) safeExecute(ctx context.Context, evt *event.Event, reg registration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return reg.handler(ctx, evt)
}
