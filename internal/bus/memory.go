// README: In-process change bus for single-process wiring and tests.
package bus

import (
	"context"
	"sync"
)

type memorySub struct {
	table string
	key   string
	sub   *Subscription
}

// MemoryBus delivers events to subscribers within one process. Same contract
// as RedisBus: at-least-once, no cross-subscriber ordering.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[int]*memorySub
	next int
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]*memorySub)}
}

func (b *MemoryBus) Publish(_ context.Context, e Event) error {
	b.mu.Lock()
	targets := make([]*Subscription, 0, len(b.subs))
	for _, ms := range b.subs {
		if ms.table == e.Table && (ms.key == "" || ms.key == e.Key) {
			targets = append(targets, ms.sub)
		}
	}
	b.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(e)
	}
	return nil
}

func (b *MemoryBus) Subscribe(_ context.Context, table, key string) (*Subscription, error) {
	b.mu.Lock()
	id := b.next
	b.next++
	sub := newSubscription(subscriptionBuffer, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	})
	b.subs[id] = &memorySub{table: table, key: key, sub: sub}
	b.mu.Unlock()
	return sub, nil
}
