package api

import (
	"dm-chat/domain"
	"dm-chat/domain/event"
	"time"

	"github.com/samber/lo"
)

type SendMessageRequest struct {
	ReceiverID string  `json:"receiverId"`
	Body       string  `json:"body"`
	Message    string  `json:"message"`
	ReplyTo    *uint64 `json:"replyTo"`
}

// text accepts both "body" and the legacy "message" field.
func (r SendMessageRequest) text() string {
	if r.Body != "" {
		return r.Body
	}
	return r.Message
}

type MarkReadRequest struct {
	MessageIDs []uint64 `json:"messageIds"`
}

type UpsertUserRequest struct {
	Name string `json:"name"`
}

type MessageResponse struct {
	ID         uint64    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	ReceiverID string    `json:"receiverId"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"createdAt"`
	ReplyTo    *uint64   `json:"replyTo"`
	Read       bool      `json:"read"`
}

type PresenceResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsOnline bool   `json:"is_online"`
}

type PresenceFrame struct {
	UserID string    `json:"userId"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// Frame is what a session receives on the WebSocket.
type Frame struct {
	Type     event.Type       `json:"type"`
	Message  *MessageResponse `json:"message,omitempty"`
	Presence *PresenceFrame   `json:"presence,omitempty"`
}

func toMessageResponse(m domain.Message) MessageResponse {
	var replyTo *uint64
	if m.ReplyTo != nil {
		replyTo = lo.ToPtr(uint64(*m.ReplyTo))
	}
	return MessageResponse{
		ID:         uint64(m.ID),
		SenderID:   string(m.SenderID),
		SenderName: m.SenderName,
		ReceiverID: string(m.ReceiverID),
		Body:       m.Body,
		CreatedAt:  m.CreatedAt,
		ReplyTo:    replyTo,
		Read:       m.Read,
	}
}

func toPresenceResponse(p domain.Presence) PresenceResponse {
	return PresenceResponse{ID: string(p.UserID), Name: p.Name, IsOnline: p.Online}
}

func toMessageIDs(ids []uint64) []domain.MessageID {
	return lo.Map(ids, func(id uint64, _ int) domain.MessageID { return domain.MessageID(id) })
}

// toFrame returns false for events sessions don't care about.
func toFrame(e event.DomainEvent) (Frame, bool) {
	switch evt := e.(type) {
	case event.MessageDelivered:
		return Frame{Type: event.MessageType, Message: lo.ToPtr(toMessageResponse(evt.Message))}, true
	case event.PresenceChanged:
		return Frame{Type: event.PresenceType, Presence: &PresenceFrame{UserID: string(evt.UserID), Online: evt.Online, At: evt.At}}, true
	default:
		return Frame{}, false
	}
}
