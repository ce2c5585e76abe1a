package workers

import (
	"context"
	"dm-chat/observability"
	"log/slog"
	"os"
	"reflect"
	goruntime "runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// HealthMonitoringWorker periodically samples the process (CPU, RSS), the Go
// runtime, the fill level of internal channels and the number of online users.
// Reading len(channel) and cap(channel) is non-blocking, so sampling doesn't
// interfere with the goroutines using them.
type HealthMonitoringWorker struct {
	log            *slog.Logger
	monitoring     *observability.MonitoringManager
	channels       []NamedChannel
	onlineUsers    func() int
	metricInterval time.Duration
}

func NewHealthMonitoringWorker(
	log *slog.Logger,
	monitoring *observability.MonitoringManager,
	channels []NamedChannel,
	onlineUsers func() int,
	metricInterval time.Duration,
) *HealthMonitoringWorker {
	return &HealthMonitoringWorker{
		log:            log,
		monitoring:     monitoring,
		channels:       channels,
		onlineUsers:    onlineUsers,
		metricInterval: metricInterval,
	}
}

func (w *HealthMonitoringWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping health monitoring")
			return nil
		case <-ticker.C:
			w.monitoring.Record(w.sample(p))
		}
	}
}

func (w *HealthMonitoringWorker) sample(p *process.Process) observability.Sample {
	var mem goruntime.MemStats
	goruntime.ReadMemStats(&mem)
	s := observability.Sample{
		AllocMemMb: mem.Alloc / 1024 / 1024,
		NumGC:      mem.NumGC,
		Goroutines: goruntime.NumGoroutine(),
		SampledAt:  time.Now().UTC(),
	}
	if cpu, err := p.CPUPercent(); err == nil {
		s.CPUPercent = cpu
	} else {
		w.log.Debug("Error while finding process cpu usage", "error", err)
	}
	if info, err := p.MemoryInfo(); err == nil {
		s.RSSMb = info.RSS / 1024 / 1024
	} else {
		w.log.Debug("Error while finding process memory usage", "error", err)
	}
	if w.onlineUsers != nil {
		s.OnlineUsers = w.onlineUsers()
	}
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		s.Channels = append(s.Channels, observability.ChannelStats{Name: nc.Name, Length: v.Len(), Capacity: v.Cap()})
	}
	return s
}
