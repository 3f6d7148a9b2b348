// Package eventbus provides in-process publish/subscribe for domain events.
// Local writes publish change events here; the sync coordinator and the
// reconciler subscribe.
package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/amirasaad/ledgersync/pkg/domain"
)

// EventBus is the contract for publishing and subscribing to domain events.
type EventBus interface {
	Publish(ctx context.Context, event domain.Event) error
	Subscribe(eventType string, handler func(context.Context, domain.Event))
}

// Memory is a synchronous in-memory EventBus. Handlers run on the
// publisher's goroutine in subscription order.
type Memory struct {
	handlers map[string][]func(context.Context, domain.Event)
	mu       sync.RWMutex
}

// NewMemory creates an empty in-memory bus.
func NewMemory() *Memory {
	return &Memory{handlers: make(map[string][]func(context.Context, domain.Event))}
}

// Publish delivers the event to every handler subscribed to its type.
func (b *Memory) Publish(ctx context.Context, event domain.Event) error {
	slog.Debug("eventbus publish", "event_type", event.EventType())
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, handler := range b.handlers[event.EventType()] {
		handler(ctx, event)
	}
	return nil
}

// Subscribe registers a handler for an event type.
func (b *Memory) Subscribe(eventType string, handler func(context.Context, domain.Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}
