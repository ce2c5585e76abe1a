//go:generate go run go.uber.org/mock/mockgen -source=presence_service.go -destination=../mocks/mock_presence_service.go -package=mocks
package services

import (
	"dm-chat/contract"
	"dm-chat/domain"
	"dm-chat/observability"
	"dm-chat/repositories"
	"log/slog"

	"github.com/samber/lo"
)

type IPresenceService interface {
	ListPresence() ([]domain.Presence, error)
	GetPresence(id domain.UserID) (domain.Presence, error)
	OpenSession(userID domain.UserID, sink contract.EventSink) domain.SessionID
	CloseSession(id domain.SessionID)
	UpsertUser(cmd domain.UpsertUserCommand) error
}

// PresenceService answers presence queries from the in-memory tracker, which
// is authoritative, and names from the user directory.
type PresenceService struct {
	log        *slog.Logger
	users      repositories.IUserRepository
	tracker    contract.IPresenceTracker
	monitoring *observability.MonitoringManager
}

func NewPresenceService(log *slog.Logger, users repositories.IUserRepository,
	tracker contract.IPresenceTracker, monitoring *observability.MonitoringManager) *PresenceService {
	return &PresenceService{log: log, users: users, tracker: tracker, monitoring: monitoring}
}

// ListPresence returns every known user ordered by id.
func (p *PresenceService) ListPresence() ([]domain.Presence, error) {
	users, err := p.users.ListUsers()
	if err != nil {
		return nil, err
	}
	return lo.Map(users, func(u domain.User, _ int) domain.Presence {
		return domain.Presence{UserID: u.ID, Name: u.Name, Online: p.tracker.Status(u.ID)}
	}), nil
}

func (p *PresenceService) GetPresence(id domain.UserID) (domain.Presence, error) {
	user, err := p.users.GetUser(id)
	if err != nil {
		return domain.Presence{}, err
	}
	return domain.Presence{UserID: user.ID, Name: user.Name, Online: p.tracker.Status(id)}, nil
}

// OpenSession trusts userID: it must come from an authenticated identity.
func (p *PresenceService) OpenSession(userID domain.UserID, sink contract.EventSink) domain.SessionID {
	id := p.tracker.RegisterSession(userID, sink)
	p.monitoring.IncrSessionsOpened()
	p.log.Info("Session opened", "user_id", userID, "session_id", id)
	return id
}

// CloseSession tolerates unknown and already closed sessions.
func (p *PresenceService) CloseSession(id domain.SessionID) {
	p.tracker.DeregisterSession(id)
	p.monitoring.IncrSessionsClosed()
	p.log.Info("Session closed", "session_id", id)
}

func (p *PresenceService) UpsertUser(cmd domain.UpsertUserCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	return p.users.UpsertUser(domain.User{ID: cmd.ID, Name: cmd.Name})
}
