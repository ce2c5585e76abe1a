// Package domain contains core concepts of the direct messaging system.
// This file defines Message and its read state.
// Messages are immutable once persisted, except for the read flag.
package domain

import (
	"strconv"
	"time"
)

type UserID string

func (u UserID) String() string { return string(u) }

// MessageID is assigned by the message store at persistence time.
// IDs are unique and strictly increasing.
type MessageID uint64

func (m MessageID) String() string { return strconv.FormatUint(uint64(m), 10) }

// Message represents a direct message between two users.
type Message struct {
	ID         MessageID
	SenderID   UserID
	SenderName string
	ReceiverID UserID
	Body       string
	CreatedAt  time.Time
	ReplyTo    *MessageID
	Read       bool
}

// IsUnreadFor reports whether the message was received by viewer and not read yet.
func (m Message) IsUnreadFor(viewer UserID) bool {
	return m.ReceiverID == viewer && !m.Read
}
