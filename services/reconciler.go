package services

import (
	"dm-chat/domain"
	"dm-chat/observability"
	"dm-chat/repositories"
	"log/slog"

	"github.com/samber/lo"
)

// Reconciler moves messages from unread to read, the only legal transition.
// Explicit marking and the implicit marking on fetch share the same
// idempotent MarkRead of the store.
type Reconciler struct {
	log        *slog.Logger
	messages   repositories.IMessageRepository
	monitoring *observability.MonitoringManager
}

func NewReconciler(log *slog.Logger, messages repositories.IMessageRepository, monitoring *observability.MonitoringManager) *Reconciler {
	return &Reconciler{log: log, messages: messages, monitoring: monitoring}
}

// MarkRead skips unknown ids and messages already read.
func (r *Reconciler) MarkRead(ids []domain.MessageID) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	updated, err := r.messages.MarkRead(ids)
	if err != nil {
		return 0, err
	}
	r.monitoring.IncrMessagesRead(updated)
	return updated, nil
}

// ReconcileOnFetch marks read every message of the conversation that viewer
// received and had not read yet.
func (r *Reconciler) ReconcileOnFetch(conversation []domain.Message, viewer domain.UserID) (int, error) {
	unread := lo.FilterMap(conversation, func(m domain.Message, _ int) (domain.MessageID, bool) {
		return m.ID, m.IsUnreadFor(viewer)
	})
	if len(unread) == 0 {
		return 0, nil
	}
	r.log.Debug("Reconciling unread messages", "user_id", viewer, "count", len(unread))
	return r.MarkRead(unread)
}
