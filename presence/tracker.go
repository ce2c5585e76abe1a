package presence

import (
	"dm-chat/contract"
	"dm-chat/domain"
	"dm-chat/domain/event"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Tracker holds the live sessions of every user.
// Presence is derived: a user is online iff at least one session is live.
//
// Each user has its own lock. Registering, deregistering and the 0<->1
// transition (persisted flag + event) happen under it, so sessions of the
// same user are totally ordered while different users never contend.
// The tracker-wide lock only guards the two lookup maps.
type Tracker struct {
	mu       sync.RWMutex
	users    map[domain.UserID]*userSessions
	sessions map[domain.SessionID]domain.UserID

	store   contract.PresenceStore
	changes *Changes
	log     *slog.Logger
	now     func() time.Time
}

type userSessions struct {
	mu       sync.Mutex
	sessions map[domain.SessionID]contract.Session
}

// NewTracker creates a Tracker. changes may be nil when nobody subscribes to presence changes.
func NewTracker(log *slog.Logger, store contract.PresenceStore, changes *Changes) *Tracker {
	return &Tracker{
		users:    make(map[domain.UserID]*userSessions),
		sessions: make(map[domain.SessionID]domain.UserID),
		store:    store,
		changes:  changes,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RegisterSession opens a new session for userID. The first session of a user
// flips them online.
func (t *Tracker) RegisterSession(userID domain.UserID, sink contract.EventSink) domain.SessionID {
	entry := t.entry(userID)
	session := contract.Session{
		SessionInfo: domain.SessionInfo{ID: domain.NewSessionID(), UserID: userID, OpenedAt: t.now()},
		Sink:        sink,
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.sessions[session.ID] = session
	t.mu.Lock()
	t.sessions[session.ID] = userID
	t.mu.Unlock()

	t.log.Debug("Session registered", "user_id", userID, "session_id", session.ID, "count", len(entry.sessions))
	if len(entry.sessions) == 1 {
		t.transition(userID, true)
	}
	return session.ID
}

// DeregisterSession closes a session. The last session of a user flips them
// offline. Unknown or already closed sessions are ignored.
// A sink that can be closed is closed, so its transport learns the session is over.
func (t *Tracker) DeregisterSession(sessionID domain.SessionID) {
	t.mu.RLock()
	userID, ok := t.sessions[sessionID]
	entry := t.users[userID]
	t.mu.RUnlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// A concurrent duplicate may have removed it meanwhile
	if _, ok = entry.sessions[sessionID]; !ok {
		return
	}
	session := entry.sessions[sessionID]
	delete(entry.sessions, sessionID)
	if closer, ok := session.Sink.(interface{ Close() }); ok {
		closer.Close()
	}
	t.mu.Lock()
	delete(t.sessions, sessionID)
	t.mu.Unlock()

	t.log.Debug("Session deregistered", "user_id", userID, "session_id", sessionID, "count", len(entry.sessions))
	if len(entry.sessions) == 0 {
		t.transition(userID, false)
	}
}

func (t *Tracker) Status(userID domain.UserID) bool {
	entry, ok := t.lookup(userID)
	if !ok {
		return false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	return len(entry.sessions) > 0
}

// Sessions returns the live sessions of userID, oldest first.
func (t *Tracker) Sessions(userID domain.UserID) []contract.Session {
	entry, ok := t.lookup(userID)
	if !ok {
		return nil
	}
	return entry.snapshot()
}

func (t *Tracker) AllSessions() []contract.Session {
	t.mu.RLock()
	entries := make([]*userSessions, 0, len(t.users))
	for _, entry := range t.users {
		entries = append(entries, entry)
	}
	t.mu.RUnlock()

	var all []contract.Session
	for _, entry := range entries {
		all = append(all, entry.snapshot()...)
	}
	return all
}

// OnlineUsers counts users holding at least one session.
func (t *Tracker) OnlineUsers() int {
	t.mu.RLock()
	entries := make([]*userSessions, 0, len(t.users))
	for _, entry := range t.users {
		entries = append(entries, entry)
	}
	t.mu.RUnlock()

	var online int
	for _, entry := range entries {
		entry.mu.Lock()
		if len(entry.sessions) > 0 {
			online++
		}
		entry.mu.Unlock()
	}
	return online
}

// entry returns the user's sessions, creating them on first use.
// Entries are never removed: a stale pointer held by a concurrent caller
// would otherwise split a user's count across two entries.
func (t *Tracker) entry(userID domain.UserID) *userSessions {
	if entry, ok := t.lookup(userID); ok {
		return entry
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if entry, ok := t.users[userID]; ok {
		return entry
	}
	entry := &userSessions{sessions: make(map[domain.SessionID]contract.Session)}
	t.users[userID] = entry
	return entry
}

func (t *Tracker) lookup(userID domain.UserID) (*userSessions, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.users[userID]
	return entry, ok
}

// transition must be called with the user's lock held.
func (t *Tracker) transition(userID domain.UserID, online bool) {
	if err := t.store.SetOnline(userID, online); err != nil {
		// The in-memory count stays authoritative, only pollers see a stale flag
		t.log.Error("Unable to persist presence", "user_id", userID, "online", online, "error", err)
	}
	t.log.Info("Presence changed", "user_id", userID, "online", online)
	if t.changes != nil {
		t.changes.Push(event.PresenceChanged{UserID: userID, Online: online, At: t.now()})
	}
}

func (u *userSessions) snapshot() []contract.Session {
	u.mu.Lock()
	sessions := make([]contract.Session, 0, len(u.sessions))
	for _, s := range u.sessions {
		sessions = append(sessions, s)
	}
	u.mu.Unlock()
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].OpenedAt.Before(sessions[j].OpenedAt) })
	return sessions
}
