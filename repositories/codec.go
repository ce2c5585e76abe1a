package repositories

import (
	"dm-chat/domain"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	messagePrefix      = "msg:"
	conversationPrefix = "conv:"
	userPrefix         = "user:"
	messageSequenceKey = "seq:message"
	// maxTimestamp sorts after every 19-digit padded nanosecond timestamp
	maxTimestamp = "9999999999999999999"
)

type diskMessage struct {
	ID         int64  `bson:"id"`
	SenderID   string `bson:"sender_id"`
	ReceiverID string `bson:"receiver_id"`
	Body       string `bson:"body"`
	CreatedAt  int64  `bson:"created_at"`
	ReplyTo    *int64 `bson:"reply_to,omitempty"`
	Read       bool   `bson:"read"`
}

type diskUser struct {
	ID     string `bson:"id"`
	Name   string `bson:"name"`
	Online bool   `bson:"online"`
}

// messageKey is "msg:{id}" with 20-digit padding so ids sort numerically.
func messageKey(id domain.MessageID) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, uint64(id)))
}

// conversationPrefixFor returns the same prefix whatever the direction of the pair.
// User ids never contain ':' so the prefix can't collide with another pair.
func conversationPrefixFor(a, b domain.UserID) string {
	lo, hi := string(a), string(b)
	if strings.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%s%s:%s:", conversationPrefix, lo, hi)
}

// conversationKey is "conv:{lo}:{hi}:{timestamp_padded}:{id_padded}".
// Reverse iteration over the prefix yields createdAt descending, ids breaking ties.
func conversationKey(m domain.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%020d",
		conversationPrefixFor(m.SenderID, m.ReceiverID),
		m.CreatedAt.UnixNano(),
		uint64(m.ID),
	))
}

func userKey(id domain.UserID) []byte {
	return []byte(userPrefix + string(id))
}

func encodeMessage(m domain.Message) ([]byte, error) {
	dm := diskMessage{
		ID:         int64(m.ID),
		SenderID:   string(m.SenderID),
		ReceiverID: string(m.ReceiverID),
		Body:       m.Body,
		CreatedAt:  m.CreatedAt.UnixNano(),
		Read:       m.Read,
	}
	if m.ReplyTo != nil {
		replyTo := int64(*m.ReplyTo)
		dm.ReplyTo = &replyTo
	}
	return bson.Marshal(dm)
}

func decodeMessage(b []byte) (domain.Message, error) {
	var dm diskMessage
	if err := bson.Unmarshal(b, &dm); err != nil {
		return domain.Message{}, err
	}
	m := domain.Message{
		ID:         domain.MessageID(dm.ID),
		SenderID:   domain.UserID(dm.SenderID),
		ReceiverID: domain.UserID(dm.ReceiverID),
		Body:       dm.Body,
		CreatedAt:  time.Unix(0, dm.CreatedAt).UTC(),
		Read:       dm.Read,
	}
	if dm.ReplyTo != nil {
		replyTo := domain.MessageID(*dm.ReplyTo)
		m.ReplyTo = &replyTo
	}
	return m, nil
}

func encodeUser(u domain.User) ([]byte, error) {
	return bson.Marshal(diskUser{ID: string(u.ID), Name: u.Name, Online: u.Online})
}

func decodeUser(b []byte) (domain.User, error) {
	var du diskUser
	if err := bson.Unmarshal(b, &du); err != nil {
		return domain.User{}, err
	}
	return domain.User{ID: domain.UserID(du.ID), Name: du.Name, Online: du.Online}, nil
}

// DecodeValue renders a stored value for the inspection tools.
func DecodeValue(key string, val []byte) (string, error) {
	switch {
	case strings.HasPrefix(key, messagePrefix):
		m, err := decodeMessage(val)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s -> %s read=%t %q", m.SenderID, m.ReceiverID, m.Read, m.Body), nil
	case strings.HasPrefix(key, userPrefix):
		u, err := decodeUser(val)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s online=%t", u.Name, u.Online), nil
	case strings.HasPrefix(key, conversationPrefix):
		return "index", nil
	default:
		return fmt.Sprintf("%d bytes", len(val)), nil
	}
}
