package sink

import (
	"context"
	"dm-chat/contract"
	"dm-chat/domain"
	"dm-chat/domain/event"
	"dm-chat/mocks"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sessionOf(id domain.SessionID, userID domain.UserID, sink contract.EventSink) contract.Session {
	return contract.Session{SessionInfo: domain.SessionInfo{ID: id, UserID: userID}, Sink: sink}
}

func Test_Broadcast_Skips_Stalled_Session_Without_Waiting(t *testing.T) {
	req := require.New(t)

	// Given a watcher whose buffer is full and never drained, and a healthy one
	stalled := NewSessionSink(1)
	req.True(stalled.Offer(event.PresenceChanged{UserID: "x"}))
	healthy := NewSessionSink(4)
	broadcast := NewBroadcastSink(slog.Default(), staticSessions{
		sessionOf("s1", "watcher", stalled),
		sessionOf("s2", "other", healthy),
		sessionOf("s3", "u", NewSessionSink(4)),
	}, time.Hour)

	// When u flips many times
	start := time.Now()
	for i := 0; i < 3; i++ {
		req.NoError(broadcast.Consume(context.Background(), event.PresenceChanged{UserID: "u", Online: i%2 == 0}))
	}

	// Then the broadcast never waited on the stalled session
	req.Less(time.Since(start), time.Second)
	req.Len(healthy.ConnectedUserEvent, 3)
	req.Len(stalled.ConnectedUserEvent, 1)
}

func Test_Broadcast_Skips_Own_And_Closed_Sessions(t *testing.T) {
	req := require.New(t)
	own := NewSessionSink(1)
	closed := NewSessionSink(1)
	closed.Close()
	broadcast := NewBroadcastSink(slog.Default(), staticSessions{
		sessionOf("s1", "u", own),
		sessionOf("s2", "v", closed),
		sessionOf("s3", "w", nil),
	}, time.Second)

	req.NoError(broadcast.Consume(context.Background(), event.PresenceChanged{UserID: "u", Online: true}))

	req.Empty(own.ConnectedUserEvent)
	req.Empty(closed.ConnectedUserEvent)
}

func Test_Broadcast_Bounds_Sinks_Unable_To_Refuse(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	other := mocks.NewMockEventSink(ctrl)

	other.EXPECT().Consume(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ event.DomainEvent) error {
		_, ok := ctx.Deadline()
		req.True(ok)
		<-ctx.Done()
		return ctx.Err()
	}).Times(1)
	broadcast := NewBroadcastSink(slog.Default(), staticSessions{sessionOf("s1", "v", other)}, 10*time.Millisecond)

	req.NoError(broadcast.Consume(context.Background(), event.PresenceChanged{UserID: "u"}))
}

func Test_Session_Sink_Offer(t *testing.T) {
	req := require.New(t)
	s := NewSessionSink(1)

	req.True(s.Offer(event.PresenceChanged{}))
	req.False(s.Offer(event.PresenceChanged{}))

	<-s.ConnectedUserEvent
	s.Close()
	req.False(s.Offer(event.PresenceChanged{}))
}
