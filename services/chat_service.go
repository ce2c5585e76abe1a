//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"dm-chat/contract"
	"dm-chat/domain"
	"dm-chat/observability"
	"dm-chat/repositories"
	"log/slog"
	"time"
)

type IChatService interface {
	Send(cmd domain.SendMessageCommand) (domain.Message, error)
	FetchConversation(cmd domain.FetchConversationCommand) ([]domain.Message, error)
	MarkRead(cmd domain.MarkReadCommand) (int, error)
}

type ChatService struct {
	log              *slog.Logger
	messages         repositories.IMessageRepository
	users            repositories.IUserRepository
	distributor      contract.IDistributor
	reconciler       *Reconciler
	monitoring       *observability.MonitoringManager
	maxContentLength int
	now              func() time.Time
}

func NewChatService(
	log *slog.Logger,
	messages repositories.IMessageRepository,
	users repositories.IUserRepository,
	distributor contract.IDistributor,
	reconciler *Reconciler,
	monitoring *observability.MonitoringManager,
	maxContentLength int,
) *ChatService {
	return &ChatService{
		log:              log,
		messages:         messages,
		users:            users,
		distributor:      distributor,
		reconciler:       reconciler,
		monitoring:       monitoring,
		maxContentLength: maxContentLength,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Send validates, persists then pushes the message to the receiver's live
// sessions. Store and publish run under the receiver's ordering point, so a
// push never precedes persistence and pushes keep persistence order.
// A failed push never fails the send.
func (s *ChatService) Send(cmd domain.SendMessageCommand) (domain.Message, error) {
	if err := cmd.Validate(s.maxContentLength); err != nil {
		return domain.Message{}, err
	}
	senderName := s.senderName(cmd.SenderID)

	var stored domain.Message
	err := s.distributor.Serialize(cmd.ReceiverID, func() error {
		var err error
		stored, err = s.messages.StoreMessage(domain.Message{
			SenderID:   cmd.SenderID,
			ReceiverID: cmd.ReceiverID,
			Body:       cmd.Body,
			ReplyTo:    cmd.ReplyTo,
			CreatedAt:  s.now(),
		})
		if err != nil {
			return err
		}
		stored.SenderName = senderName
		s.distributor.Publish(stored)
		return nil
	})
	if err != nil {
		return domain.Message{}, err
	}
	s.monitoring.IncrMessagesSent()
	s.log.Debug("Message sent", "message_id", stored.ID, "user_id", stored.SenderID)
	return stored, nil
}

// FetchConversation returns the conversation newest first and marks read what
// the viewer received. The result is the snapshot taken before marking: newly
// reconciled messages show read=true from the next fetch on.
// A failing reconciliation is logged, the history is still returned.
func (s *ChatService) FetchConversation(cmd domain.FetchConversationCommand) ([]domain.Message, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	conversation, err := s.messages.GetConversation(cmd.ViewerID, cmd.OtherID)
	if err != nil {
		return nil, err
	}
	if _, err = s.reconciler.ReconcileOnFetch(conversation, cmd.ViewerID); err != nil {
		s.log.Error("Unable to reconcile read receipts", "user_id", cmd.ViewerID, "error", err)
	}
	if conversation == nil {
		conversation = []domain.Message{}
	}
	return conversation, nil
}

func (s *ChatService) MarkRead(cmd domain.MarkReadCommand) (int, error) {
	return s.reconciler.MarkRead(cmd.IDs)
}

func (s *ChatService) senderName(id domain.UserID) string {
	user, err := s.users.GetUser(id)
	if err != nil {
		s.log.Debug("Sender name unavailable", "user_id", id, "error", err)
		return ""
	}
	return user.Name
}
