package events

import (
	"context"
	"log/slog"
	"sync"
)

// Handler consumes one event. Handlers run concurrently with each other; a
// returned error is logged and swallowed, it never fails the operation that
// produced the event.
type Handler func(ctx context.Context, evt Event) error

type subscription struct {
	id      int
	handler Handler
}

// Bus dispatches events to subscribed handlers. The zero value is not
// usable; construct with NewBus.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind][]subscription
	nextID int
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:   make(map[Kind][]subscription),
		logger: logger,
	}
}

// Subscribe registers h for events of the given kind, or for all events when
// kind is Wildcard. The returned function removes the subscription; calling
// it more than once is harmless.
func (b *Bus) Subscribe(kind Kind, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[kind]
		for i, sub := range list {
			if sub.id == id {
				b.subs[kind] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers evt to every handler subscribed to its kind and to all
// wildcard handlers, each on its own goroutine, and blocks until all of them
// have returned. Handler panics are recovered and logged.
func (b *Bus) Publish(ctx context.Context, evt Event) {
	b.mu.RLock()
	handlers := make([]subscription, 0, len(b.subs[evt.Kind])+len(b.subs[Wildcard]))
	handlers = append(handlers, b.subs[evt.Kind]...)
	handlers = append(handlers, b.subs[Wildcard]...)
	b.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range handlers {
		wg.Add(1)
		go func(sub subscription) {
			defer wg.Done()
			b.dispatch(ctx, sub, evt)
		}(sub)
	}
	wg.Wait()
}

func (b *Bus) dispatch(ctx context.Context, sub subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(evt.Kind),
				"panic", r,
			)
		}
	}()

	if err := sub.handler(ctx, evt); err != nil {
		b.logger.Warn("event handler failed",
			"event", string(evt.Kind),
			"error", err,
		)
	}
}
