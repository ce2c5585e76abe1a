//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"dm-chat/domain"
	"dm-chat/domain/event"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging during supervision, so workers don't carry a name field.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events pushed by the core.
// Consume must honor ctx: a push that outlives its deadline is a delivery failure.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// Session binds a live connection to the user that opened it.
type Session struct {
	domain.SessionInfo
	Sink EventSink
}

// PresenceStore persists the redundant online flag for poll-based clients.
type PresenceStore interface {
	SetOnline(userID domain.UserID, online bool) error
}

// IPresenceTracker owns the per-user live-session reference count.
type IPresenceTracker interface {
	RegisterSession(userID domain.UserID, sink EventSink) domain.SessionID
	DeregisterSession(sessionID domain.SessionID)
	Status(userID domain.UserID) bool
	Sessions(userID domain.UserID) []Session
	AllSessions() []Session
}

// IDistributor pushes persisted messages to the receiver's live sessions.
// Serialize runs fn under the receiver's ordering point, so that
// a store followed by Publish inside fn keeps persistence order.
type IDistributor interface {
	Publish(message domain.Message)
	Serialize(receiverID domain.UserID, fn func() error) error
}
