// README: Change-notification bus; publish/subscribe keyed by table and optional record key.
package bus

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
)

// Event describes a committed change to one record. At is the server-assigned
// commit time; consumers use it for latest-wins reconciliation since delivery
// is at-least-once and unordered across subscribers.
type Event struct {
	Op      Op              `json:"op"`
	Table   string          `json:"table"`
	Key     string          `json:"key"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Bus fans committed changes out to subscribers. An empty key subscribes to
// the whole table.
type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(ctx context.Context, table, key string) (*Subscription, error)
}

// Subscription is an explicitly attached event stream. Close is idempotent
// and must be called when the consuming view goes away.
type Subscription struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
	stop   func()
}

func newSubscription(buffer int, stop func()) *Subscription {
	return &Subscription{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		stop:   stop,
	}
}

// Events yields change events until the subscription is closed.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.stop != nil {
			s.stop()
		}
	})
}

// deliver hands an event to the subscriber, giving up if the subscription is
// closed first.
func (s *Subscription) deliver(e Event) {
	select {
	case s.events <- e:
	case <-s.done:
	}
}

func (s *Subscription) closed() <-chan struct{} {
	return s.done
}

const subscriptionBuffer = 64
