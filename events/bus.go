// Package events implements a best-effort, in-process event bus.
// Publishing never blocks and a dropped event never changes ticket
// state — subscribers only ever observe, never decide.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/arctek/conductor/ticket"
)

// Bus fans out ticket events to subscribers without ever blocking the
// publisher: each subscriber gets its own buffered channel, and a full
// channel just drops the event (logged at debug level).
type Bus struct {
	logger *slog.Logger

	mu          sync.Mutex
	subscribers []chan ticket.Event
}

// NewBus constructs an empty bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// Subscribe returns a channel that receives every event published
// after this call. The channel is never closed by the bus.
func (b *Bus) Subscribe(buffer int) <-chan ticket.Event {
	ch := make(chan ticket.Event, buffer)
	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()
	return ch
}

// Publish best-effort broadcasts an event to every subscriber. Also
// persists the event via store so a replay/audit view survives
// process restarts — storage is the system of record, the channel
// fan-out is purely a live-observer convenience.
func (b *Bus) Publish(ctx context.Context, store eventStore, e ticket.Event) {
	if err := store.AddEvent(ctx, &e); err != nil {
		b.logger.Warn("failed to persist event", "type", e.Type, "ticket_id", e.TicketID, "error", err)
	}
	b.mu.Lock()
	subs := append([]chan ticket.Event(nil), b.subscribers...)
	b.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			b.logger.Debug("dropped event for slow subscriber", "type", e.Type, "ticket_id", e.TicketID)
		}
	}
}

type eventStore interface {
	AddEvent(ctx context.Context, e *ticket.Event) error
}
