package node

import "github.com/shirou/gopsutil/v3/mem"

// detectMemory reports total and available RAM in megabytes. Adapted from
// the teacher's resource monitor (internal/worker/monitor.go), which samples
// the same gopsutil call on a repeating ticker; here it runs once at probe
// time.
func detectMemory() MemoryInfo {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return MemoryInfo{}
	}
	return MemoryInfo{
		TotalMB:     vm.Total / 1024 / 1024,
		AvailableMB: vm.Available / 1024 / 1024,
	}
}
