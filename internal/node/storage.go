package node

import (
	"strings"

	"github.com/shirou/gopsutil/v3/disk"
)

// detectStorage reports the total and available capacity of the largest
// attached volume, plus a best-effort storage-class tag. gopsutil does not
// expose rotational/SSD/NVMe classification directly, so the class is
// inferred heuristically from the device name the way the spec allows.
func detectStorage() StorageInfo {
	partitions, err := disk.Partitions(false)
	if err != nil || len(partitions) == 0 {
		return StorageInfo{Class: StorageUnknown}
	}

	var best StorageInfo
	var bestTotal uint64
	for _, p := range partitions {
		usage, err := disk.Usage(p.Mountpoint)
		if err != nil {
			continue
		}
		if usage.Total > bestTotal {
			bestTotal = usage.Total
			best = StorageInfo{
				TotalGB:     usage.Total / (1 << 30),
				AvailableGB: usage.Free / (1 << 30),
				Class:       classifyStorage(p.Device),
			}
		}
	}
	if best.Class == "" {
		best.Class = StorageUnknown
	}
	return best
}

func classifyStorage(device string) StorageClass {
	d := strings.ToLower(device)
	switch {
	case strings.Contains(d, "nvme"):
		return StorageNVMe
	case strings.Contains(d, "ssd"):
		return StorageSSD
	case strings.Contains(d, "sd"), strings.Contains(d, "hd"), strings.Contains(d, "disk"):
		return StorageHDD
	default:
		return StorageUnknown
	}
}
