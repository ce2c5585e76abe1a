//go:generate go run go.uber.org/mock/mockgen -source=presence_bus.go -destination=../mocks/mock_presence_bus.go -package=mocks
package sink

import (
	"context"
	"dm-chat/contract"
	"dm-chat/domain/event"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// KeyValueWriter is satisfied by *redis.Client.
type KeyValueWriter interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type PresencePayload struct {
	UserID string    `json:"userId"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

func toPresencePayload(evt event.PresenceChanged) PresencePayload {
	return PresencePayload{UserID: string(evt.UserID), Online: evt.Online, At: evt.At}
}

// NatsPresenceSink publishes presence changes on "<prefix>.presence.<userId>"
// for other services to subscribe to.
type NatsPresenceSink struct {
	log       *slog.Logger
	publisher Publisher
	prefix    string
}

func NewNatsPresenceSink(log *slog.Logger, publisher Publisher, prefix string) *NatsPresenceSink {
	return &NatsPresenceSink{log: log, publisher: publisher, prefix: prefix}
}

func (n *NatsPresenceSink) Subject(userID string) string {
	return fmt.Sprintf("%s.presence.%s", n.prefix, userID)
}

func (n *NatsPresenceSink) Consume(_ context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.PresenceChanged)
	if !ok {
		return nil
	}
	data, err := json.Marshal(toPresencePayload(evt))
	if err != nil {
		return err
	}
	if err = n.publisher.Publish(n.Subject(string(evt.UserID)), data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	n.log.Debug("Presence published", "user_id", evt.UserID, "online", evt.Online)
	return nil
}

// RedisPresenceSink mirrors online users as "im:presence:<userId>" keys, for
// processes that only read Redis. With a ttl, keys of users still online are
// refreshed by Run, so a crashed process lets its keys expire.
type RedisPresenceSink struct {
	log      *slog.Logger
	client   KeyValueWriter
	sessions SessionLister
	ttl      time.Duration
}

func NewRedisPresenceSink(log *slog.Logger, client KeyValueWriter, sessions SessionLister, ttl time.Duration) *RedisPresenceSink {
	return &RedisPresenceSink{log: log, client: client, sessions: sessions, ttl: ttl}
}

func PresenceKey(userID string) string {
	return "im:presence:" + userID
}

func (r *RedisPresenceSink) Consume(ctx context.Context, e event.DomainEvent) error {
	evt, ok := e.(event.PresenceChanged)
	if !ok {
		return nil
	}
	key := PresenceKey(string(evt.UserID))
	if !evt.Online {
		return r.client.Del(ctx, key).Err()
	}
	return r.set(ctx, toPresencePayload(evt))
}

// Run refreshes the keys of online users every half ttl.
// Without ttl keys never expire and there is nothing to refresh.
func (r *RedisPresenceSink) Run(ctx context.Context) error {
	if r.ttl <= 0 {
		return nil
	}
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

func (r *RedisPresenceSink) refresh(ctx context.Context) {
	online := lo.Uniq(lo.Map(r.sessions.AllSessions(), func(s contract.Session, _ int) string {
		return string(s.UserID)
	}))
	now := time.Now().UTC()
	for _, userID := range online {
		if err := r.set(ctx, PresencePayload{UserID: userID, Online: true, At: now}); err != nil {
			r.log.Warn("Unable to refresh presence key", "user_id", userID, "error", err)
		}
	}
}

func (r *RedisPresenceSink) set(ctx context.Context, payload PresencePayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, PresenceKey(payload.UserID), data, r.ttl).Err()
}
