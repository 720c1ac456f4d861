package events_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roboclear/ledger/events"
)

func TestBusDeliversByKind(t *testing.T) {
	bus := events.NewBus(nil)
	ctx := context.Background()

	var scoped, wild atomic.Int32
	bus.Subscribe(events.TransferCompleted, func(context.Context, events.Event) error {
		scoped.Add(1)
		return nil
	})
	bus.Subscribe(events.Wildcard, func(context.Context, events.Event) error {
		wild.Add(1)
		return nil
	})

	bus.Publish(ctx, events.Event{Kind: events.TransferCompleted})
	bus.Publish(ctx, events.Event{Kind: events.AccountCreated})

	assert.Equal(t, int32(1), scoped.Load())
	assert.Equal(t, int32(2), wild.Load(), "wildcard handlers see every kind")
}

func TestBusPublishWaits(t *testing.T) {
	bus := events.NewBus(nil)

	done := false
	bus.Subscribe(events.AccountCreated, func(context.Context, events.Event) error {
		time.Sleep(20 * time.Millisecond)
		done = true
		return nil
	})

	bus.Publish(context.Background(), events.Event{Kind: events.AccountCreated})
	assert.True(t, done, "Publish returns only after handlers finish")
}

func TestBusUnsubscribe(t *testing.T) {
	bus := events.NewBus(nil)
	ctx := context.Background()

	var first, second atomic.Int32
	unsub := bus.Subscribe(events.AccountCreated, func(context.Context, events.Event) error {
		first.Add(1)
		return nil
	})
	bus.Subscribe(events.AccountCreated, func(context.Context, events.Event) error {
		second.Add(1)
		return nil
	})

	bus.Publish(ctx, events.Event{Kind: events.AccountCreated})

	unsub()
	unsub() // a second call is harmless

	bus.Publish(ctx, events.Event{Kind: events.AccountCreated})

	assert.Equal(t, int32(1), first.Load())
	assert.Equal(t, int32(2), second.Load(), "the sibling subscription is untouched")
}

func TestBusContainsPanic(t *testing.T) {
	var buf bytes.Buffer
	bus := events.NewBus(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	var sibling atomic.Int32
	bus.Subscribe(events.Wildcard, func(context.Context, events.Event) error {
		panic("boom")
	})
	bus.Subscribe(events.Wildcard, func(context.Context, events.Event) error {
		sibling.Add(1)
		return nil
	})

	require.NotPanics(t, func() {
		bus.Publish(ctx, events.Event{Kind: events.TransferCompleted})
	})
	assert.Equal(t, int32(1), sibling.Load(), "a panicking handler does not take its siblings down")
	assert.Contains(t, buf.String(), "event handler panicked")
}

func TestBusSwallowsHandlerError(t *testing.T) {
	var buf bytes.Buffer
	bus := events.NewBus(slog.New(slog.NewTextHandler(&buf, nil)))

	bus.Subscribe(events.AccountDeleted, func(context.Context, events.Event) error {
		return errors.New("downstream unavailable")
	})

	bus.Publish(context.Background(), events.Event{Kind: events.AccountDeleted})
	assert.Contains(t, buf.String(), "event handler failed")
}

func TestBusConcurrentPublish(t *testing.T) {
	bus := events.NewBus(nil)
	ctx := context.Background()

	var delivered atomic.Int32
	bus.Subscribe(events.TransferCompleted, func(context.Context, events.Event) error {
		delivered.Add(1)
		return nil
	})

	const publishers, each = 4, 50
	var wg sync.WaitGroup
	for range publishers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				bus.Publish(ctx, events.Event{Kind: events.TransferCompleted})
			}
		}()
	}

	// Subscription churn racing the publishers must not disturb delivery to
	// the stable subscriber.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 100 {
			unsub := bus.Subscribe(events.TransferCompleted, func(context.Context, events.Event) error {
				return nil
			})
			unsub()
		}
	}()
	wg.Wait()

	assert.Equal(t, int32(publishers*each), delivered.Load())
}
