package runtime

import (
	"context"
	"dm-chat/contract"
	"dm-chat/domain"
	"dm-chat/domain/event"
	"dm-chat/observability"
	"log/slog"
	"sync"
	"time"
)

// Distributor pushes persisted messages to the live sessions of their receiver.
//
// Every receiver has its own lane: a goroutine draining a FIFO of messages,
// started on demand and stopped once idle. A single lane per receiver is what
// keeps pushes in persistence order, while receivers never wait on each other.
// Delivery is best-effort and at-most-once: a push failing or exceeding the
// delivery timeout deregisters the session, it is never retried.
type Distributor struct {
	mu    sync.Mutex
	lanes map[domain.UserID]chan domain.Message
	wg    sync.WaitGroup

	locks      *keyedMutex
	queue      chan domain.Message
	tracker    contract.IPresenceTracker
	monitoring *observability.MonitoringManager
	log        *slog.Logger

	laneBufferSize  int
	deliveryTimeout time.Duration
	laneIdleTimeout time.Duration
}

func NewDistributor(
	log *slog.Logger,
	tracker contract.IPresenceTracker,
	monitoring *observability.MonitoringManager,
	bufferSize, laneBufferSize int,
	deliveryTimeout, laneIdleTimeout time.Duration,
) *Distributor {
	return &Distributor{
		lanes:           make(map[domain.UserID]chan domain.Message),
		locks:           newKeyedMutex(),
		queue:           make(chan domain.Message, bufferSize),
		tracker:         tracker,
		monitoring:      monitoring,
		log:             log,
		laneBufferSize:  laneBufferSize,
		deliveryTimeout: deliveryTimeout,
		laneIdleTimeout: laneIdleTimeout,
	}
}

// Serialize runs fn while holding the ordering point of receiverID.
// Storing a message then calling Publish inside fn guarantees that two
// messages for the same receiver are published in the order they were persisted.
func (d *Distributor) Serialize(receiverID domain.UserID, fn func() error) error {
	unlock := d.locks.Lock(receiverID)
	defer unlock()
	return fn()
}

// Publish must only be called once message is durably stored.
// It is a no-op when the receiver has no live session.
func (d *Distributor) Publish(message domain.Message) {
	if !d.tracker.Status(message.ReceiverID) {
		d.log.Debug("Receiver offline, nothing to push", "user_id", message.ReceiverID, "message_id", message.ID)
		return
	}
	select {
	case d.queue <- message:
	default:
		d.monitoring.IncrPushesDropped()
		d.log.Warn("Distribution queue full, dropping push", "user_id", message.ReceiverID, "message_id", message.ID)
	}
}

// Queue exposes the dispatch queue for health sampling.
func (d *Distributor) Queue() chan domain.Message {
	return d.queue
}

// Run routes queued messages to their receiver lane until ctx is canceled,
// then waits for every lane to stop.
func (d *Distributor) Run(ctx context.Context) error {
	defer d.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			d.log.Debug("Context done, stopping distributor")
			return nil
		case message := <-d.queue:
			d.route(ctx, message)
		}
	}
}

func (d *Distributor) route(ctx context.Context, message domain.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()

	lane, ok := d.lanes[message.ReceiverID]
	if !ok {
		lane = make(chan domain.Message, d.laneBufferSize)
		d.lanes[message.ReceiverID] = lane
		d.wg.Add(1)
		go d.drain(ctx, message.ReceiverID, lane)
	}
	select {
	case lane <- message:
	default:
		d.monitoring.IncrPushesDropped()
		d.log.Warn("Receiver lane full, dropping push", "user_id", message.ReceiverID, "message_id", message.ID)
	}
}

// drain delivers the lane's messages one at a time.
// An idle lane is removed under the distributor lock, only when still empty,
// so a message routed meanwhile is never left behind.
func (d *Distributor) drain(ctx context.Context, receiverID domain.UserID, lane chan domain.Message) {
	defer d.wg.Done()
	idle := time.NewTimer(d.laneIdleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case message := <-lane:
			d.deliver(ctx, message)
			idle.Reset(d.laneIdleTimeout)
		case <-idle.C:
			d.mu.Lock()
			if len(lane) == 0 {
				delete(d.lanes, receiverID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(d.laneIdleTimeout)
		}
	}
}

// deliver pushes to every session of the receiver in parallel and waits for
// all of them, so the next message of the lane never overtakes this one.
func (d *Distributor) deliver(ctx context.Context, message domain.Message) {
	sessions := d.tracker.Sessions(message.ReceiverID)
	var wg sync.WaitGroup
	for _, session := range sessions {
		wg.Add(1)
		go func(session contract.Session) {
			defer wg.Done()
			pushCtx, cancel := context.WithTimeout(ctx, d.deliveryTimeout)
			defer cancel()
			if err := session.Sink.Consume(pushCtx, event.MessageDelivered{Message: message}); err != nil {
				d.monitoring.IncrPushesFailed()
				d.log.Warn("Push failed, closing session",
					"user_id", message.ReceiverID, "session_id", session.ID,
					"message_id", message.ID, "error", err)
				d.tracker.DeregisterSession(session.ID)
				return
			}
			d.monitoring.IncrPushesDelivered()
		}(session)
	}
	wg.Wait()
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[domain.UserID]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[domain.UserID]*refMutex)}
}

// Lock returns the matching unlock. Unused entries are removed.
func (k *keyedMutex) Lock(key domain.UserID) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
