package node

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/catalystcommunity/rhizos-node/internal/metrics"
)

// ResourceSample is a point-in-time reading of host resource usage,
// exposed alongside the static Capabilities snapshot on the local status
// API. Adapted from the teacher's ResourceMetrics (internal/worker/monitor.go),
// trimmed to the host-level fields this agent still cares about once job
// concurrency and counters moved to the shared State aggregate.
type ResourceSample struct {
	Timestamp     time.Time `json:"timestamp"`
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryUsedMB  uint64    `json:"memory_used_mb"`
	MemoryTotalMB uint64    `json:"memory_total_mb"`
	MemoryPercent float64   `json:"memory_percent"`
	GoRoutines    int       `json:"go_routines"`
}

// ResourceMonitor periodically samples host CPU/memory usage and warns
// when configured thresholds are exceeded, the way the teacher's
// ResourceMonitor does for its worker fleet. Here there is a single
// instance per agent process rather than per worker.
type ResourceMonitor struct {
	interval        time.Duration
	cpuThreshold    float64
	memoryThreshold float64

	mu     sync.RWMutex
	latest ResourceSample

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewResourceMonitor constructs a monitor with the teacher's default
// sampling interval and alert thresholds.
func NewResourceMonitor() *ResourceMonitor {
	return &ResourceMonitor{
		interval:        30 * time.Second,
		cpuThreshold:    80.0,
		memoryThreshold: 90.0,
		stopCh:          make(chan struct{}),
	}
}

// Start launches the sampling loop in the background until ctx is
// cancelled or Stop is called.
func (rm *ResourceMonitor) Start(ctx context.Context) {
	rm.wg.Add(1)
	go rm.loop(ctx)
}

// Stop halts the sampling loop and waits for it to exit.
func (rm *ResourceMonitor) Stop() {
	rm.stopOnce.Do(func() { close(rm.stopCh) })
	rm.wg.Wait()
}

func (rm *ResourceMonitor) loop(ctx context.Context) {
	defer rm.wg.Done()

	rm.sample()

	ticker := time.NewTicker(rm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rm.stopCh:
			return
		case <-ticker.C:
			rm.sample()
		}
	}
}

func (rm *ResourceMonitor) sample() {
	s := ResourceSample{Timestamp: time.Now(), GoRoutines: runtime.NumGoroutine()}

	if pct, err := cpu.Percent(time.Second, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemoryUsedMB = vm.Used / 1024 / 1024
		s.MemoryTotalMB = vm.Total / 1024 / 1024
		s.MemoryPercent = vm.UsedPercent
	}

	rm.mu.Lock()
	rm.latest = s
	rm.mu.Unlock()

	metrics.RecordHostSample(s.CPUPercent, s.MemoryPercent, s.GoRoutines)

	if s.CPUPercent > rm.cpuThreshold {
		logging.Log.WithField("cpu_percent", s.CPUPercent).Warn("host CPU usage exceeds threshold")
	}
	if s.MemoryPercent > rm.memoryThreshold {
		logging.Log.WithField("memory_percent", s.MemoryPercent).Warn("host memory usage exceeds threshold")
	}
}

// Snapshot returns the most recent sample. Zero-valued until the first
// sample, taken as soon as Start runs, completes.
func (rm *ResourceMonitor) Snapshot() ResourceSample {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return rm.latest
}
