package observability

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ChannelStats is the fill level of an internal queue.
type ChannelStats struct {
	Name     string `json:"name"`
	Length   int    `json:"length"`
	Capacity int    `json:"capacity"`
}

// Sample is what the health worker measures periodically.
type Sample struct {
	CPUPercent  float64        `json:"cpu_percent"`
	RSSMb       uint64         `json:"rss_mb"`
	AllocMemMb  uint64         `json:"alloc_mem_mb"`
	NumGC       uint32         `json:"num_gc"`
	Goroutines  int            `json:"goroutines"`
	OnlineUsers int            `json:"online_users"`
	Channels    []ChannelStats `json:"channels"`
	SampledAt   time.Time      `json:"sampled_at"`
}

// Stats aggregates counters and the latest sample for /debug/stats.
type Stats struct {
	MessagesSent    uint64 `json:"messages_sent"`
	MessagesRead    uint64 `json:"messages_read"`
	PushesDelivered uint64 `json:"pushes_delivered"`
	PushesFailed    uint64 `json:"pushes_failed"`
	PushesDropped   uint64 `json:"pushes_dropped"`
	SessionsOpened  uint64 `json:"sessions_opened"`
	SessionsClosed  uint64 `json:"sessions_closed"`
	Sample
}

// MonitoringManager collects runtime counters. Safe for concurrent use.
type MonitoringManager struct {
	log    *slog.Logger
	mu     sync.RWMutex
	latest Sample

	messagesSent    atomic.Uint64
	messagesRead    atomic.Uint64
	pushesDelivered atomic.Uint64
	pushesFailed    atomic.Uint64
	pushesDropped   atomic.Uint64
	sessionsOpened  atomic.Uint64
	sessionsClosed  atomic.Uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (mm *MonitoringManager) IncrMessagesSent() { mm.messagesSent.Add(1) }
func (mm *MonitoringManager) IncrMessagesRead(n int) { mm.messagesRead.Add(uint64(n)) }
func (mm *MonitoringManager) IncrPushesDelivered() { mm.pushesDelivered.Add(1) }
func (mm *MonitoringManager) IncrPushesFailed() { mm.pushesFailed.Add(1) }
func (mm *MonitoringManager) IncrPushesDropped() { mm.pushesDropped.Add(1) }
func (mm *MonitoringManager) IncrSessionsOpened() { mm.sessionsOpened.Add(1) }
func (mm *MonitoringManager) IncrSessionsClosed() { mm.sessionsClosed.Add(1) }

func (mm *MonitoringManager) Record(sample Sample) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.latest = sample
	mm.log.Debug("Health sample",
		"cpu", sample.CPUPercent, "rss_mb", sample.RSSMb,
		"goroutines", sample.Goroutines, "online_users", sample.OnlineUsers)
}

func (mm *MonitoringManager) Snapshot() Stats {
	mm.mu.RLock()
	sample := mm.latest
	mm.mu.RUnlock()
	return Stats{
		MessagesSent:    mm.messagesSent.Load(),
		MessagesRead:    mm.messagesRead.Load(),
		PushesDelivered: mm.pushesDelivered.Load(),
		PushesFailed:    mm.pushesFailed.Load(),
		PushesDropped:   mm.pushesDropped.Load(),
		SessionsOpened:  mm.sessionsOpened.Load(),
		SessionsClosed:  mm.sessionsClosed.Load(),
		Sample:          sample,
	}
}

// ToMap flattens the stats for the debug inspector.
func (s Stats) ToMap() map[string]any {
	return map[string]any{
		"messages_sent":    s.MessagesSent,
		"messages_read":    s.MessagesRead,
		"pushes_delivered": s.PushesDelivered,
		"pushes_failed":    s.PushesFailed,
		"pushes_dropped":   s.PushesDropped,
		"sessions_opened":  s.SessionsOpened,
		"sessions_closed":  s.SessionsClosed,
		"online_users":     s.OnlineUsers,
		"goroutines":       s.Goroutines,
		"rss_mb":           s.RSSMb,
		"cpu_percent":      s.CPUPercent,
	}
}
