package runtime

import (
	"context"
	"dm-chat/domain"
	"dm-chat/domain/event"
	"dm-chat/mocks"
	"dm-chat/observability"
	"dm-chat/presence"
	"dm-chat/sink"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	tracker     *presence.Tracker
	distributor *Distributor
	monitoring  *observability.MonitoringManager
}

func newFixture(t *testing.T, deliveryTimeout, laneIdleTimeout time.Duration) fixture {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockPresenceStore(ctrl)
	store.EXPECT().SetOnline(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	monitoring := observability.NewMonitoringManager(log)
	tracker := presence.NewTracker(log, store, nil)
	distributor := NewDistributor(log, tracker, monitoring, 100, 100, deliveryTimeout, laneIdleTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = distributor.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return fixture{tracker: tracker, distributor: distributor, monitoring: monitoring}
}

func receive(t *testing.T, s *sink.SessionSink) domain.Message {
	t.Helper()
	select {
	case e := <-s.ConnectedUserEvent:
		delivered, ok := e.(event.MessageDelivered)
		require.True(t, ok)
		return delivered.Message
	case <-time.After(time.Second):
		require.Fail(t, "No push received")
		return domain.Message{}
	}
}

func Test_Push_Reaches_Live_Session(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second, time.Second)

	// Given user 9 has an open session
	session := sink.NewSessionSink(10)
	f.tracker.RegisterSession("9", session)

	// When user 7 sends a message to user 9
	message := domain.Message{ID: 1, SenderID: "7", ReceiverID: "9", Body: "hello"}
	f.distributor.Publish(message)

	// Then the session receives it without polling
	req.Equal(message, receive(t, session))
	req.Eventually(func() bool { return f.monitoring.Snapshot().PushesDelivered == 1 }, time.Second, 5*time.Millisecond)
}

func Test_Every_Session_Of_The_Receiver_Gets_The_Push(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second, time.Second)

	phone := sink.NewSessionSink(10)
	laptop := sink.NewSessionSink(10)
	bystander := sink.NewSessionSink(10)
	f.tracker.RegisterSession("9", phone)
	f.tracker.RegisterSession("9", laptop)
	f.tracker.RegisterSession("8", bystander)

	message := domain.Message{ID: 3, SenderID: "7", ReceiverID: "9", Body: "hello"}
	f.distributor.Publish(message)

	req.Equal(message, receive(t, phone))
	req.Equal(message, receive(t, laptop))
	req.Len(bystander.ConnectedUserEvent, 0)
}

func Test_Publish_Without_Session_Is_A_No_Op(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second, time.Second)

	f.distributor.Publish(domain.Message{ID: 1, SenderID: "7", ReceiverID: "9", Body: "hello"})

	req.Len(f.distributor.Queue(), 0)
	req.Zero(f.monitoring.Snapshot().PushesDelivered)
}

func Test_Pushes_Follow_Persistence_Order_Across_Senders(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second, time.Second)

	session := sink.NewSessionSink(1000)
	f.tracker.RegisterSession("9", session)

	// Given many senders writing to the same receiver at once,
	// ids being assigned by the store under the receiver ordering point
	var lastID domain.MessageID
	const senders, perSender = 10, 20
	var wg sync.WaitGroup
	for s := 0; s < senders; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				err := f.distributor.Serialize("9", func() error {
					lastID++
					f.distributor.Publish(domain.Message{
						ID:         lastID,
						SenderID:   domain.UserID(fmt.Sprintf("sender-%d", s)),
						ReceiverID: "9",
						Body:       "x",
					})
					return nil
				})
				req.NoError(err)
			}
		}(s)
	}
	wg.Wait()

	// Then the receiver gets them in id order
	var previous domain.MessageID
	for i := 0; i < senders*perSender; i++ {
		message := receive(t, session)
		req.Greater(message.ID, previous)
		previous = message.ID
	}
}

func Test_Failed_Push_Deregisters_Session(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second, time.Second)

	// Given a dead session next to a live one
	dead := sink.NewSessionSink(10)
	live := sink.NewSessionSink(10)
	deadID := f.tracker.RegisterSession("9", dead)
	f.tracker.RegisterSession("9", live)
	dead.Close()

	f.distributor.Publish(domain.Message{ID: 1, ReceiverID: "9", Body: "hi"})

	// Then the live session still gets the push and the dead one is gone
	receive(t, live)
	req.Eventually(func() bool { return len(f.tracker.Sessions("9")) == 1 }, time.Second, 5*time.Millisecond)
	req.NotEqual(deadID, f.tracker.Sessions("9")[0].ID)
	req.True(f.tracker.Status("9"))
	req.Equal(uint64(1), f.monitoring.Snapshot().PushesFailed)
}

func Test_Stalled_Push_Times_Out_And_User_Goes_Offline(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, 20*time.Millisecond, time.Second)

	// Given a session whose buffer is full and never drained
	stalled := sink.NewSessionSink(1)
	f.tracker.RegisterSession("9", stalled)
	req.NoError(stalled.Consume(context.Background(), event.PresenceChanged{}))

	f.distributor.Publish(domain.Message{ID: 1, ReceiverID: "9", Body: "hi"})

	req.Eventually(func() bool { return !f.tracker.Status("9") }, time.Second, 5*time.Millisecond)
}

func Test_Idle_Lane_Is_Released_And_Recreated(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second, 10*time.Millisecond)

	session := sink.NewSessionSink(10)
	f.tracker.RegisterSession("9", session)

	f.distributor.Publish(domain.Message{ID: 1, ReceiverID: "9", Body: "one"})
	receive(t, session)

	// When the lane stays idle
	req.Eventually(func() bool {
		f.distributor.mu.Lock()
		defer f.distributor.mu.Unlock()
		return len(f.distributor.lanes) == 0
	}, time.Second, 5*time.Millisecond)

	// Then a later message opens a new lane
	f.distributor.Publish(domain.Message{ID: 2, ReceiverID: "9", Body: "two"})
	req.Equal(domain.MessageID(2), receive(t, session).ID)
}

func Test_Serialize_Returns_Fn_Error(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, time.Second, time.Second)

	boom := fmt.Errorf("boom")
	req.ErrorIs(f.distributor.Serialize("9", func() error { return boom }), boom)
	// The lock is released, the next call goes through
	req.NoError(f.distributor.Serialize("9", func() error { return nil }))
	req.Empty(f.distributor.locks.locks)
}
