// README: Bounded in-memory notification queues, one per recipient.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"angierens/internal/types"
)

type Notification struct {
	ID        types.ID  `json:"id"`
	Recipient types.ID  `json:"recipient"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// Center keeps the most recent notifications per recipient. When a queue is
// full the oldest entry is dropped; readers that care about older history
// have the order status events.
type Center struct {
	mu    sync.Mutex
	size  int
	byRcp map[types.ID][]Notification
}

func NewCenter(size int) *Center {
	if size <= 0 {
		size = 50
	}
	return &Center{size: size, byRcp: make(map[types.ID][]Notification)}
}

// Push appends a notification, evicting the oldest when the queue is full.
func (c *Center) Push(recipient types.ID, title, body string) Notification {
	n := Notification{
		ID:        types.ID(uuid.NewString()),
		Recipient: recipient,
		Title:     title,
		Body:      body,
		CreatedAt: time.Now(),
	}
	c.mu.Lock()
	q := append(c.byRcp[recipient], n)
	if len(q) > c.size {
		q = q[len(q)-c.size:]
	}
	c.byRcp[recipient] = q
	c.mu.Unlock()
	return n
}

// List returns the recipient's notifications, newest first.
func (c *Center) List(recipient types.ID) []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.byRcp[recipient]
	out := make([]Notification, len(q))
	for i, n := range q {
		out[len(q)-1-i] = n
	}
	return out
}

// Unread counts the recipient's unread notifications.
func (c *Center) Unread(recipient types.ID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, n := range c.byRcp[recipient] {
		if !n.Read {
			count++
		}
	}
	return count
}

// MarkAllRead flags every queued notification for the recipient as read.
func (c *Center) MarkAllRead(recipient types.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.byRcp[recipient]
	for i := range q {
		q[i].Read = true
	}
}
