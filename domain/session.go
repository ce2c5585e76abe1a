package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionID is the opaque handle of one live client connection.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

func (s SessionID) String() string { return string(s) }

// SessionInfo describes a live session without exposing its transport.
type SessionInfo struct {
	ID       SessionID
	UserID   UserID
	OpenedAt time.Time
}
