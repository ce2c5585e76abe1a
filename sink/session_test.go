package sink

import (
	"context"
	"dm-chat/domain/event"
	"dm-chat/errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Session_Sink_Buffers_Events(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(2)

	evt := event.PresenceChanged{UserID: "1", Online: true}
	req.NoError(s.Consume(context.Background(), evt))
	req.Equal(evt, <-s.ConnectedUserEvent)
}

func Test_Session_Sink_Stalled_Consumer_Times_Out(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(1)

	// Given a full buffer nobody drains
	req.NoError(s.Consume(context.Background(), event.PresenceChanged{}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.Consume(ctx, event.PresenceChanged{})
	req.ErrorIs(err, errors.ErrDeliveryFailure)
}

func Test_Session_Sink_Closed(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(1)

	s.Close()
	s.Close()

	err := s.Consume(context.Background(), event.PresenceChanged{})
	req.ErrorIs(err, errors.ErrSessionClosed)
	req.ErrorIs(err, errors.ErrDeliveryFailure)
	select {
	case <-s.Done():
	default:
		req.Fail("Done should be closed")
	}
}
