package sink

import (
	"context"
	"dm-chat/contract"
	"dm-chat/domain/event"
	"log/slog"
	"time"
)

// SessionLister is the part of the presence tracker the broadcast needs.
type SessionLister interface {
	AllSessions() []contract.Session
}

// offerer is a sink able to refuse an event instead of waiting for room.
type offerer interface {
	Offer(e event.DomainEvent) bool
}

// BroadcastSink forwards presence changes to every live session, so that
// clients subscribe instead of polling. It never waits on a session: a full
// session is skipped, the message distributor is in charge of detecting dead
// ones. Sinks unable to refuse are given sessionTimeout at most.
type BroadcastSink struct {
	log            *slog.Logger
	sessions       SessionLister
	sessionTimeout time.Duration
}

func NewBroadcastSink(log *slog.Logger, sessions SessionLister, sessionTimeout time.Duration) *BroadcastSink {
	return &BroadcastSink{log: log, sessions: sessions, sessionTimeout: sessionTimeout}
}

func (b *BroadcastSink) Consume(ctx context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.PresenceChanged)
	if !ok {
		return nil
	}
	for _, session := range b.sessions.AllSessions() {
		// A user doesn't need to hear about their own presence
		if session.UserID == evt.UserID || session.Sink == nil {
			continue
		}
		if o, ok := session.Sink.(offerer); ok {
			if !o.Offer(evt) {
				b.log.Debug("Session full, presence frame skipped", "session_id", session.ID, "user_id", evt.UserID)
			}
			continue
		}
		sessionCtx, cancel := context.WithTimeout(ctx, b.sessionTimeout)
		if err := session.Sink.Consume(sessionCtx, evt); err != nil {
			b.log.Debug("Presence frame not delivered", "session_id", session.ID, "error", err)
		}
		cancel()
	}
	return nil
}
