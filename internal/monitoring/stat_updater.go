package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/isdelr/alumni-portal-be/internal/models"
	"github.com/isdelr/alumni-portal-be/internal/services"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

const (
	highCPUThreshold = 90.0
	alertCooldown    = 15 * time.Minute
)

// SampleFunc reads the current host statistics.
type SampleFunc func(ctx context.Context) (models.SystemStats, error)

// StatUpdater periodically samples host statistics and keeps the latest
// sample for the admin health endpoint.
type StatUpdater struct {
	sample    SampleFunc
	events    services.EventServiceProvider
	interval  time.Duration
	done      chan struct{}
	stopOnce  sync.Once
	mu        sync.RWMutex
	latest    models.SystemStats
	lastAlert time.Time
}

// NewStatUpdater creates a StatUpdater sampling the local host every interval.
func NewStatUpdater(events services.EventServiceProvider, interval time.Duration) *StatUpdater {
	return newStatUpdater(HostStats, events, interval)
}

func newStatUpdater(sample SampleFunc, events services.EventServiceProvider, interval time.Duration) *StatUpdater {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &StatUpdater{
		sample:   sample,
		events:   events,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Run samples once immediately and then on every tick until Stop is called.
func (su *StatUpdater) Run() {
	log.Info().Dur("interval", su.interval).Msg("Starting background stat updater...")
	ticker := time.NewTicker(su.interval)
	defer ticker.Stop()

	su.update()
	for {
		select {
		case <-su.done:
			log.Info().Msg("Stopping background stat updater.")
			return
		case <-ticker.C:
			su.update()
		}
	}
}

// Stop halts the periodic updates.
func (su *StatUpdater) Stop() {
	su.stopOnce.Do(func() { close(su.done) })
}

// Latest returns the most recent sample. SampledAt is zero before the first one.
func (su *StatUpdater) Latest() models.SystemStats {
	su.mu.RLock()
	defer su.mu.RUnlock()
	return su.latest
}

func (su *StatUpdater) update() {
	ctx, cancel := context.WithTimeout(context.Background(), su.interval)
	defer cancel()

	stats, err := su.sample(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("StatUpdater: Failed to sample host stats")
		return
	}
	su.mu.Lock()
	su.latest = stats
	su.mu.Unlock()

	su.checkAndAlertForHighCPU(ctx, stats)
}

func (su *StatUpdater) checkAndAlertForHighCPU(ctx context.Context, stats models.SystemStats) {
	if stats.CPUPercent <= highCPUThreshold || su.events == nil {
		return
	}
	if !su.lastAlert.IsZero() && stats.SampledAt.Sub(su.lastAlert) < alertCooldown {
		return
	}
	msg := fmt.Sprintf("High CPU usage (%.1f%%) detected on the API host.", stats.CPUPercent)
	if err := su.events.Record(ctx, "system.alert.cpu", "warn", msg, ""); err != nil {
		log.Error().Err(err).Msg("StatUpdater: Failed to record CPU alert")
		return
	}
	su.lastAlert = stats.SampledAt
}

// HostStats samples the local host with gopsutil.
func HostStats(ctx context.Context) (models.SystemStats, error) {
	stats := models.SystemStats{
		Goroutines: runtime.NumGoroutine(),
		SampledAt:  time.Now().UTC(),
	}

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return stats, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) > 0 {
		stats.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return stats, fmt.Errorf("virtual memory: %w", err)
	}
	stats.MemoryPercent = vm.UsedPercent
	stats.MemoryUsed = vm.Used
	stats.MemoryTotal = vm.Total

	if usage, err := disk.UsageWithContext(ctx, "/"); err == nil {
		stats.DiskPercent = usage.UsedPercent
	} else {
		log.Debug().Err(err).Msg("StatUpdater: Could not read disk usage")
	}
	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		stats.UptimeSeconds = uptime
	}
	return stats, nil
}
