package sink

import (
	"context"
	"dm-chat/contract"
	"dm-chat/domain"
	"dm-chat/domain/event"
	"dm-chat/mocks"
	"encoding/json"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type staticSessions []contract.Session

func (s staticSessions) AllSessions() []contract.Session { return s }

func Test_Nats_Sink_Publishes_On_User_Subject(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	natsSink := NewNatsPresenceSink(slog.Default(), publisher, "dm")

	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	publisher.EXPECT().Publish("dm.presence.7", gomock.Any()).DoAndReturn(func(_ string, data []byte) error {
		var payload PresencePayload
		req.NoError(json.Unmarshal(data, &payload))
		req.Equal("7", payload.UserID)
		req.True(payload.Online)
		req.True(at.Equal(payload.At))
		return nil
	}).Times(1)

	req.NoError(natsSink.Consume(context.Background(), event.PresenceChanged{UserID: "7", Online: true, At: at}))
	// Other events are ignored
	req.NoError(natsSink.Consume(context.Background(), event.MessageDelivered{}))
}

func Test_Nats_Sink_Surfaces_Publish_Error(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockPublisher(ctrl)
	natsSink := NewNatsPresenceSink(slog.Default(), publisher, "dm")

	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(fmt.Errorf("nats: connection closed"))

	req.Error(natsSink.Consume(context.Background(), event.PresenceChanged{UserID: "7"}))
}

func Test_Redis_Sink_Sets_And_Deletes_Keys(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockKeyValueWriter(ctrl)
	redisSink := NewRedisPresenceSink(slog.Default(), client, staticSessions{}, time.Minute)

	gomock.InOrder(
		client.EXPECT().Set(gomock.Any(), "im:presence:3", gomock.Any(), time.Minute).
			Return(redis.NewStatusResult("OK", nil)).Times(1),
		client.EXPECT().Del(gomock.Any(), "im:presence:3").
			Return(redis.NewIntResult(1, nil)).Times(1),
	)

	req.NoError(redisSink.Consume(context.Background(), event.PresenceChanged{UserID: "3", Online: true}))
	req.NoError(redisSink.Consume(context.Background(), event.PresenceChanged{UserID: "3", Online: false}))
}

func Test_Redis_Sink_Refreshes_Online_Users(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	client := mocks.NewMockKeyValueWriter(ctrl)
	sessions := staticSessions{
		{SessionInfo: domain.SessionInfo{ID: "a", UserID: "1"}},
		{SessionInfo: domain.SessionInfo{ID: "b", UserID: "1"}},
		{SessionInfo: domain.SessionInfo{ID: "c", UserID: "2"}},
	}
	redisSink := NewRedisPresenceSink(slog.Default(), client, sessions, time.Minute)

	// One refresh per online user, whatever their number of sessions
	client.EXPECT().Set(gomock.Any(), "im:presence:1", gomock.Any(), time.Minute).Return(redis.NewStatusResult("OK", nil)).Times(1)
	client.EXPECT().Set(gomock.Any(), "im:presence:2", gomock.Any(), time.Minute).Return(redis.NewStatusResult("", fmt.Errorf("down"))).Times(1)

	redisSink.refresh(context.Background())

	// Without ttl Run returns at once
	req.NoError(NewRedisPresenceSink(slog.Default(), client, sessions, 0).Run(context.Background()))
}

func Test_Broadcast_Skips_Own_Sessions(t *testing.T) {
	req := require.New(t)
	own := NewSessionSink(1)
	other := NewSessionSink(1)
	closed := NewSessionSink(1)
	closed.Close()
	sessions := staticSessions{
		{SessionInfo: domain.SessionInfo{ID: "a", UserID: "1"}, Sink: own},
		{SessionInfo: domain.SessionInfo{ID: "b", UserID: "2"}, Sink: other},
		{SessionInfo: domain.SessionInfo{ID: "c", UserID: "3"}, Sink: closed},
	}
	broadcast := NewBroadcastSink(slog.Default(), sessions, 10*time.Millisecond)

	evt := event.PresenceChanged{UserID: "1", Online: true}
	req.NoError(broadcast.Consume(context.Background(), evt))

	req.Len(own.ConnectedUserEvent, 0)
	req.Len(other.ConnectedUserEvent, 1)
	req.Equal(evt, <-other.ConnectedUserEvent)
}
