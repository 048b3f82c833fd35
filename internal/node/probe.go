// Package node implements the capability probe: a one-shot inventory of
// the host's hardware and container-runtime presence, plus the stable
// node identity persisted across runs.
package node

import (
	"sync"

	"github.com/gammazero/workerpool"
)

// NodeVersion is the build-time version constant reported in Capabilities.
// Overridden at link time via -ldflags in release builds.
var NodeVersion = "dev"

// Detect produces a Capabilities snapshot. Node identity is read from (or
// written to) the per-user config directory; every other field is
// observational and collected independently, in parallel, the way the
// teacher parallelizes independent startup work in cmd/api.go's
// initStores via a worker pool. Detection never fails the process: fields
// that cannot be determined take conservative zero-ish defaults.
func Detect() (Capabilities, error) {
	nodeID, err := loadOrCreateNodeID()
	if err != nil {
		return Capabilities{}, err
	}

	caps := Capabilities{
		NodeID:      nodeID,
		NodeVersion: NodeVersion,
	}

	var mu sync.Mutex
	pool := workerpool.New(5)

	pool.Submit(func() {
		cpu := detectCPU()
		mu.Lock()
		caps.CPU = cpu
		mu.Unlock()
	})
	pool.Submit(func() {
		mem := detectMemory()
		mu.Lock()
		caps.Memory = mem
		mu.Unlock()
	})
	pool.Submit(func() {
		storage := detectStorage()
		mu.Lock()
		caps.Storage = storage
		mu.Unlock()
	})
	pool.Submit(func() {
		gpus := detectGPUs()
		mu.Lock()
		caps.GPUs = gpus
		mu.Unlock()
	})
	pool.Submit(func() {
		runtimes := detectContainerRuntimes()
		mu.Lock()
		caps.ContainerRuntimes = runtimes
		mu.Unlock()
	})

	pool.StopWait()

	normalize(&caps)
	return caps, nil
}

// normalize enforces the invariants the data model promises regardless of
// what the underlying detectors returned.
func normalize(caps *Capabilities) {
	if caps.CPU.Threads < caps.CPU.Cores {
		caps.CPU.Threads = caps.CPU.Cores
	}
	if caps.Memory.AvailableMB > caps.Memory.TotalMB {
		caps.Memory.AvailableMB = caps.Memory.TotalMB
	}
	if caps.GPUs == nil {
		caps.GPUs = []GPUInfo{}
	}
}
