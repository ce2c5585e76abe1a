// Package runtime wires the live side of the system: presence tracking,
// message distribution and the fan-out of presence events.
// It orchestrates without containing business rules.
package runtime

import (
	"context"
	"dm-chat/contract"
	"dm-chat/domain/event"
	"dm-chat/observability"
	"dm-chat/presence"
	"dm-chat/runtime/workers"
	"dm-chat/sink"
	"log/slog"
	"sync"
	"time"
)

type Settings struct {
	BufferSize      int
	LaneBufferSize  int
	DeliveryTimeout time.Duration
	LaneIdleTimeout time.Duration
	SinkTimeout     time.Duration
	MetricInterval  time.Duration
}

type Orchestrator struct {
	mu             sync.Mutex
	log            *slog.Logger
	supervisor     contract.ISupervisor
	tracker        *presence.Tracker
	changes        *presence.Changes
	distributor    *Distributor
	monitoring     *observability.MonitoringManager
	presenceEvents chan event.DomainEvent
	sinks          []contract.EventSink
	workers        []contract.Worker
	settings       Settings
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, store contract.PresenceStore,
	monitoring *observability.MonitoringManager, settings Settings) *Orchestrator {
	presenceEvents := make(chan event.DomainEvent, settings.BufferSize)
	changes := presence.NewChanges(presenceEvents)
	tracker := presence.NewTracker(log, store, changes)
	distributor := NewDistributor(log, tracker, monitoring,
		settings.BufferSize, settings.LaneBufferSize,
		settings.DeliveryTimeout, settings.LaneIdleTimeout)
	return &Orchestrator{
		log:            log,
		supervisor:     supervisor,
		tracker:        tracker,
		changes:        changes,
		distributor:    distributor,
		monitoring:     monitoring,
		presenceEvents: presenceEvents,
		settings:       settings,
	}
}

func (o *Orchestrator) Tracker() *presence.Tracker { return o.tracker }

func (o *Orchestrator) Distributor() *Distributor { return o.distributor }

// RegisterSinks adds subscribers of presence changes. Must be called before Start.
func (o *Orchestrator) RegisterSinks(sinks ...contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sinks = append(o.sinks, sinks...)
}

// RegisterWorkers adds extra long-running workers supervised with the core ones.
func (o *Orchestrator) RegisterWorkers(workers ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.workers = append(o.workers, workers...)
}

// Start registers every worker to the supervisor and blocks until ctx is
// canceled or Stop is called.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	broadcast := sink.NewBroadcastSink(o.log, o.tracker, o.settings.DeliveryTimeout)
	fanout := workers.NewEventFanout(o.log, o.presenceEvents, o.settings.SinkTimeout, broadcast).
		Add(o.sinks...)
	health := workers.NewHealthMonitoringWorker(o.log, o.monitoring,
		[]workers.NamedChannel{
			{Name: "presence_events", Channel: o.presenceEvents},
			{Name: "distribution_queue", Channel: o.distributor.Queue()},
		},
		o.tracker.OnlineUsers, o.settings.MetricInterval)

	o.supervisor.Add(o.changes, o.distributor, fanout, health)
	o.supervisor.Add(o.workers...)
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// CloseSessions ends every live session: sinks are closed and users flip
// offline now, while the store is still open. Transports noticing the closed
// sink later find nothing left to deregister.
func (o *Orchestrator) CloseSessions() int {
	sessions := o.tracker.AllSessions()
	for _, session := range sessions {
		o.tracker.DeregisterSession(session.ID)
	}
	if len(sessions) > 0 {
		o.log.Info("Live sessions closed", "count", len(sessions))
	}
	return len(sessions)
}

// Stop cancels the supervised workers. Start returns once all of them exited.
func (o *Orchestrator) Stop() {
	o.supervisor.Stop()
}
