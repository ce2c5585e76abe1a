package event

import (
	"dm-chat/domain"
	"time"
)

type Type string

const (
	MessageType  Type = "message"
	PresenceType Type = "presence"
)

// DomainEvent is anything pushed to sinks: live sessions, the NATS bus, the Redis mirror.
type DomainEvent interface {
	EventType() Type
}

// MessageDelivered carries a persisted message to the receiver's sessions.
type MessageDelivered struct {
	Message domain.Message
}

func (MessageDelivered) EventType() Type { return MessageType }

// PresenceChanged is emitted on the 0->1 and 1->0 session count transitions only.
type PresenceChanged struct {
	UserID domain.UserID
	Online bool
	At     time.Time
}

func (PresenceChanged) EventType() Type { return PresenceType }
