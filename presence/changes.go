package presence

import (
	"context"
	"dm-chat/domain"
	"dm-chat/domain/event"
	"sync"
)

// Changes queues presence transitions between the tracker and the fan-out.
//
// Push never blocks. While a user's transition waits to be forwarded, a newer
// one replaces it in place: a slow consumer may skip intermediate flips but
// always ends on the user's current state. Users keep the order of their
// first pending transition.
type Changes struct {
	mu      sync.Mutex
	pending map[domain.UserID]event.PresenceChanged
	order   []domain.UserID
	ready   chan struct{}
	out     chan<- event.DomainEvent
}

// NewChanges forwards to out once Run is started.
func NewChanges(out chan<- event.DomainEvent) *Changes {
	return &Changes{
		pending: make(map[domain.UserID]event.PresenceChanged),
		ready:   make(chan struct{}, 1),
		out:     out,
	}
}

func (c *Changes) Push(evt event.PresenceChanged) {
	c.mu.Lock()
	if _, ok := c.pending[evt.UserID]; !ok {
		c.order = append(c.order, evt.UserID)
	}
	c.pending[evt.UserID] = evt
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// Drain takes every pending transition, in queue order.
func (c *Changes) Drain() []event.PresenceChanged {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.order) == 0 {
		return nil
	}
	drained := make([]event.PresenceChanged, 0, len(c.order))
	for _, userID := range c.order {
		drained = append(drained, c.pending[userID])
	}
	c.pending = make(map[domain.UserID]event.PresenceChanged)
	c.order = nil
	return drained
}

func (c *Changes) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// Run forwards pending transitions until ctx is canceled. Sending to out may
// block, transitions pushed meanwhile keep coalescing.
func (c *Changes) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.ready:
		}
		for _, evt := range c.Drain() {
			select {
			case c.out <- evt:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
