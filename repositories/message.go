//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"dm-chat/domain"
	"dm-chat/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

const (
	sequenceBandwidth = 100
	maxConflictRetry  = 10
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) (domain.Message, error)
	GetMessage(id domain.MessageID) (domain.Message, error)
	GetConversation(a, b domain.UserID) ([]domain.Message, error)
	MarkRead(ids []domain.MessageID) (int, error)
}

type MessageRepository struct {
	db       *badger.DB
	log      *slog.Logger
	sequence *badger.Sequence
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSequenceKey), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("%w: message sequence: %v", errors.ErrPersistence, err)
	}
	return &MessageRepository{db: db, log: log, sequence: seq}, nil
}

// Close returns the leased ids of the sequence. Ids stay monotonic across restarts.
func (m *MessageRepository) Close() error {
	return m.sequence.Release()
}

// StoreMessage assigns the next id and persists the message with its conversation
// index entry in a single transaction, so either both exist or none.
// The stored copy always starts unread.
func (m *MessageRepository) StoreMessage(message domain.Message) (domain.Message, error) {
	next, err := m.sequence.Next()
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	// Sequence starts at 0, ids start at 1
	message.ID = domain.MessageID(next + 1)
	message.Read = false
	message.SenderName = ""
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}

	bytes, err := encodeMessage(message)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	err = m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(messageKey(message.ID), bytes); err != nil {
			return err
		}
		return txn.Set(conversationKey(message), []byte(message.ID.String()))
	})
	if err != nil {
		m.log.Error("Unable to store message", "error", err)
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return message, nil
}

func (m *MessageRepository) GetMessage(id domain.MessageID) (domain.Message, error) {
	var message domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		var err error
		message, err = readMessage(txn, id)
		if err != nil {
			return err
		}
		message.SenderName = readUserName(txn, message.SenderID)
		return nil
	})
	switch {
	case stderrors.Is(err, badger.ErrKeyNotFound):
		return domain.Message{}, fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
	case err != nil:
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return message, nil
}

// GetConversation returns every message exchanged between a and b, in both
// directions, newest first. Each message carries the sender's display name,
// empty when the sender is unknown to the user directory.
// The read happens in one snapshot, so the result is consistent even while
// new messages are being stored.
func (m *MessageRepository) GetConversation(a, b domain.UserID) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(conversationPrefixFor(a, b))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		var ids []domain.MessageID
		// Largest possible key for this pair, iteration goes backward from there
		for it.Seek(append(prefix, []byte(maxTimestamp)...)); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				raw, err := strconv.ParseUint(string(val), 10, 64)
				if err != nil {
					return err
				}
				ids = append(ids, domain.MessageID(raw))
				return nil
			})
			if err != nil {
				return err
			}
		}

		names := make(map[domain.UserID]string, 2)
		for _, id := range ids {
			message, err := readMessage(txn, id)
			if err != nil {
				return err
			}
			name, ok := names[message.SenderID]
			if !ok {
				name = readUserName(txn, message.SenderID)
				names[message.SenderID] = name
			}
			message.SenderName = name
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		m.log.Error("Unable to read conversation", "error", err)
		return nil, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return messages, nil
}

// MarkRead flips the read flag of every existing unread message among ids.
// Unknown ids and messages already read are skipped. All updates commit in a
// single transaction, retried when it conflicts with a concurrent MarkRead.
// It returns how many messages transitioned to read.
func (m *MessageRepository) MarkRead(ids []domain.MessageID) (int, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return 0, nil
	}
	var updated int
	var err error
	for attempt := 0; attempt < maxConflictRetry; attempt++ {
		updated = 0
		err = m.db.Update(func(txn *badger.Txn) error {
			for _, id := range ids {
				message, err := readMessage(txn, id)
				if stderrors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				if err != nil {
					return err
				}
				if message.Read {
					continue
				}
				message.Read = true
				bytes, err := encodeMessage(message)
				if err != nil {
					return err
				}
				if err = txn.Set(messageKey(id), bytes); err != nil {
					return err
				}
				updated++
			}
			return nil
		})
		if !stderrors.Is(err, badger.ErrConflict) {
			break
		}
		m.log.Debug("MarkRead conflict, retrying", "attempt", attempt+1)
	}
	if err != nil {
		m.log.Error("Unable to mark messages as read", "error", err)
		return 0, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	return updated, nil
}

func readMessage(txn *badger.Txn, id domain.MessageID) (domain.Message, error) {
	item, err := txn.Get(messageKey(id))
	if err != nil {
		return domain.Message{}, err
	}
	var message domain.Message
	err = item.Value(func(val []byte) error {
		message, err = decodeMessage(val)
		return err
	})
	return message, err
}

func readUserName(txn *badger.Txn, id domain.UserID) string {
	user, err := readUser(txn, id)
	if err != nil {
		return ""
	}
	return user.Name
}
