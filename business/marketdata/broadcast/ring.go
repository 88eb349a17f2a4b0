// Package broadcast implements the downstream fan-out: a single-producer,
// many-consumer ring buffer that never blocks the producer, plus the
// per-client WebSocket serving loop that drains it.
package broadcast

import (
	"context"
	"sync"

	"github.com/fd1az/cryptofeed/business/marketdata/domain"
)

// Item is one value handed back to a consumer: either an event, or a lag
// notification carrying how many messages were skipped before it.
type Item struct {
	Event   domain.MarketEvent
	Skipped int
}

// Bus is a fixed-capacity ring buffer with one producer and any number of
// independent consumer cursors. Publish never blocks: it always overwrites
// the oldest retained slot. A cursor that falls behind by more than the
// ring's capacity skips forward to the oldest slot still present and
// reports the gap as a skip count rather than stalling or erroring.
type Bus struct {
	mu       sync.Mutex
	buf      []domain.MarketEvent
	capacity uint64
	total    uint64 // number of events ever published
	notify   chan struct{}
}

// NewBus builds a Bus with the given fixed capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1
	}
	return &Bus{
		buf:      make([]domain.MarketEvent, capacity),
		capacity: uint64(capacity),
		notify:   make(chan struct{}),
	}
}

// Publish appends ev to the ring, overwriting the oldest slot once the ring
// is full. Safe for exactly one concurrent caller (the aggregator's ingest
// task); the ring's own mutex only protects against concurrent readers.
func (b *Bus) Publish(ev domain.MarketEvent) {
	b.mu.Lock()
	idx := b.total % b.capacity
	b.buf[idx] = ev
	b.total++
	old := b.notify
	b.notify = make(chan struct{})
	b.mu.Unlock()
	close(old)
}

// NewConsumer returns a cursor starting at the current write position: it
// only sees events published after this call.
func (b *Bus) NewConsumer() *Cursor {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Cursor{bus: b, next: b.total}
}

// Cursor is one consumer's read position into a Bus.
type Cursor struct {
	bus  *Bus
	next uint64
}

// Next blocks until an item is available or ctx is cancelled. When the
// cursor has fallen behind by more than the ring's capacity, it returns
// immediately with a lag Item (zero Event, Skipped > 0) and advances to the
// oldest slot still retained rather than returning stale data.
func (c *Cursor) Next(ctx context.Context) (Item, error) {
	for {
		c.bus.mu.Lock()
		total := c.bus.total
		if c.next < total {
			if total-c.next > c.bus.capacity {
				skipped := total - c.next - c.bus.capacity
				c.next = total - c.bus.capacity
				c.bus.mu.Unlock()
				return Item{Skipped: int(skipped)}, nil
			}
			idx := c.next % c.bus.capacity
			ev := c.bus.buf[idx]
			c.next++
			c.bus.mu.Unlock()
			return Item{Event: ev}, nil
		}
		ch := c.bus.notify
		c.bus.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return Item{}, ctx.Err()
		}
	}
}
