package node

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
)

// detectCPU reports vendor, model, core/thread counts, nominal frequency
// and the set of detected instruction-set features. Mirrors the teacher's
// resource monitor CPU sampling (internal/worker/monitor.go) but collects
// a static inventory instead of a repeating utilization sample.
func detectCPU() CPUInfo {
	info := CPUInfo{
		Vendor:       "Unknown",
		Model:        "Unknown",
		Architecture: detectArchitecture(),
		Features:     []string{},
	}

	counts, err := cpu.Info()
	if err == nil && len(counts) > 0 {
		info.Vendor = firstNonEmpty(counts[0].VendorID, info.Vendor)
		info.Model = firstNonEmpty(counts[0].ModelName, info.Model)
		info.FrequencyMHz = counts[0].Mhz
		info.Features = dedupeFeatures(counts[0].Flags)
	}

	physical, err := cpu.Counts(false)
	if err == nil && physical > 0 {
		info.Cores = physical
	}
	logical, err := cpu.Counts(true)
	if err == nil && logical > 0 {
		info.Threads = logical
	}

	// The invariant threads >= cores must hold even when one of the two
	// counts could not be determined.
	if info.Threads < info.Cores {
		info.Threads = info.Cores
	}
	if info.Cores == 0 && info.Threads == 0 {
		info.Cores = 1
		info.Threads = 1
	}

	return info
}

func detectArchitecture() Architecture {
	switch runtime.GOARCH {
	case "amd64", "386":
		return ArchX86_64
	case "arm64":
		return ArchAArch64
	case "arm":
		return ArchArm
	default:
		return ArchUnknown
	}
}

func dedupeFeatures(flags []string) []string {
	seen := make(map[string]struct{}, len(flags))
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
