package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/dripflow/dripflow/pkg/eventbus"
	"github.com/dripflow/dripflow/pkg/events"
)

// EventBusMock collects published events so tests can assert the engine's
// lifecycle notifications.
type EventBusMock struct {
	mu        sync.Mutex
	published []PublishedEvent
	handlers  map[events.EventType]eventbus.EventHandler
	nextID    int

	PublishErr error
}

type PublishedEvent struct {
	Key   string
	Event eventbus.Event
}

func NewEventBus() *EventBusMock {
	return &EventBusMock{handlers: make(map[events.EventType]eventbus.EventHandler)}
}

func (b *EventBusMock) Publish(_ context.Context, key string, event eventbus.Event) error {
	if b.PublishErr != nil {
		return b.PublishErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.published = append(b.published, PublishedEvent{Key: key, Event: event})

	return nil
}

func (b *EventBusMock) Handle(eventType events.EventType, handler eventbus.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = handler

	return nil
}

func (b *EventBusMock) Subscribe(_ context.Context) error {
	return nil
}

func (b *EventBusMock) Close() error {
	return nil
}

func (b *EventBusMock) GenerateID() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++

	return fmt.Sprintf("event-%d", b.nextID)
}

// Published returns a copy of everything published so far.
func (b *EventBusMock) Published() []PublishedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]PublishedEvent, len(b.published))
	copy(out, b.published)

	return out
}

// PublishedTypes returns the event types in publish order.
func (b *EventBusMock) PublishedTypes() []events.EventType {
	b.mu.Lock()
	defer b.mu.Unlock()

	types := make([]events.EventType, 0, len(b.published))
	for _, p := range b.published {
		types = append(types, p.Event.GetType())
	}

	return types
}
