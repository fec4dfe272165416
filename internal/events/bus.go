package events

import (
	"context"
	"log/slog"
	"sync"
)

// Bus is an in-process fan-out of events to every subscriber. Publish never
// blocks: when a subscriber's buffer is full the event is dropped for that
// subscriber and a warning is logged, since any later event triggers the same
// recomputation.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 64
	}
	return &Bus{subs: map[int]chan Event{}, buffer: buffer}
}

func (b *Bus) Publish(ctx context.Context, e Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.subs {
		select {
		case ch <- e:
		default:
			slog.WarnContext(ctx, "Event dropped for slow subscriber",
				"subscriber", id,
				"kind", e.Kind)
		}
	}
	return nil
}

func (b *Bus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, b.buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		close(ch)
		b.mu.Unlock()
	}()
	return ch
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
