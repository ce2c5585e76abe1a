package presence

import (
	"context"
	"dm-chat/domain/event"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Pending_Transitions_Coalesce_Per_User(t *testing.T) {
	req := require.New(t)
	changes := NewChanges(nil)

	// Given a flips three times and b once in between
	changes.Push(event.PresenceChanged{UserID: "a", Online: true})
	changes.Push(event.PresenceChanged{UserID: "b", Online: true})
	changes.Push(event.PresenceChanged{UserID: "a", Online: false})
	changes.Push(event.PresenceChanged{UserID: "a", Online: true})
	req.Equal(2, changes.Len())

	// Then a keeps its place with its latest state
	pending := changes.Drain()
	req.Equal([]event.PresenceChanged{
		{UserID: "a", Online: true},
		{UserID: "b", Online: true},
	}, pending)
	req.Nil(changes.Drain())
	req.Zero(changes.Len())
}

func Test_Run_Forwards_Latest_State_Behind_A_Slow_Consumer(t *testing.T) {
	req := require.New(t)
	out := make(chan event.DomainEvent)
	changes := NewChanges(out)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = changes.Run(ctx) }()

	// Given the first transition stuck on the consumer
	changes.Push(event.PresenceChanged{UserID: "u", Online: true})
	req.Eventually(func() bool { return changes.Len() == 0 }, time.Second, 5*time.Millisecond)

	// When u flips repeatedly meanwhile
	for i := 0; i < 9; i++ {
		changes.Push(event.PresenceChanged{UserID: "u", Online: i%2 == 1})
	}

	// Then the consumer sees the stuck transition, then the final state
	first := (<-out).(event.PresenceChanged)
	req.True(first.Online)
	last := (<-out).(event.PresenceChanged)
	req.False(last.Online)

	select {
	case e := <-out:
		req.Failf("unexpected event", "%v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func Test_Run_Stops_On_Cancel(t *testing.T) {
	changes := NewChanges(make(chan event.DomainEvent))
	ctx, cancel := context.WithCancel(context.Background())
	changes.Push(event.PresenceChanged{UserID: "u", Online: true})

	done := make(chan error, 1)
	go func() { done <- changes.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.Fail(t, "Run did not stop")
	}
}
