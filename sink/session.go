package sink

import (
	"context"
	"dm-chat/domain/event"
	"dm-chat/errors"
	"fmt"
	"sync"
)

// SessionSink is the outbound side of one live connection.
// The transport drains ConnectedUserEvent and writes each event to the wire.
type SessionSink struct {
	ConnectedUserEvent chan event.DomainEvent
	closed             chan struct{}
	once               sync.Once
}

func NewSessionSink(bufferSize int) *SessionSink {
	return &SessionSink{
		ConnectedUserEvent: make(chan event.DomainEvent, bufferSize),
		closed:             make(chan struct{}),
	}
}

// Consume hands the event to the connection. It blocks while the buffer is
// full, until ctx expires: a stalled connection is a delivery failure.
func (s *SessionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.closed:
		return errors.ErrSessionClosed
	default:
	}
	select {
	case s.ConnectedUserEvent <- e:
		return nil
	case <-s.closed:
		return errors.ErrSessionClosed
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errors.ErrDeliveryFailure, ctx.Err())
	}
}

// Offer hands the event over only if the buffer has room, it never waits.
func (s *SessionSink) Offer(e event.DomainEvent) bool {
	select {
	case <-s.closed:
		return false
	default:
	}
	select {
	case s.ConnectedUserEvent <- e:
		return true
	default:
		return false
	}
}

// Close is idempotent. Pending events are left to the garbage collector.
func (s *SessionSink) Close() {
	s.once.Do(func() { close(s.closed) })
}

func (s *SessionSink) Done() <-chan struct{} {
	return s.closed
}
