package executor

import "math"

// PricingInputs is the subset of NodeConfig the cost calculation needs.
type PricingInputs struct {
	GPUHourCents     uint32
	CPUCoreHourCents uint32
	MinimumCents     uint32
	CPUCoresLimit    *uint32 // nil means unset, defaults to 1
}

// CalculateCost implements the intentionally crude cost formula from
// §4.3: only GPU-hour and CPU-core-hour rates factor in; memory, storage,
// and GPU count do not scale the price in this version.
func CalculateCost(elapsedMs int64, p PricingInputs) int64 {
	cpuCores := uint32(1)
	if p.CPUCoresLimit != nil && *p.CPUCoresLimit > 0 {
		cpuCores = *p.CPUCoresLimit
	}

	hours := float64(elapsedMs) / 3_600_000.0
	raw := hours * (float64(p.GPUHourCents) + float64(p.CPUCoreHourCents)*float64(cpuCores))
	cost := int64(math.Round(raw))

	minimum := int64(p.MinimumCents)
	if cost < minimum {
		return minimum
	}
	return cost
}
