package node

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
)

const gpuProbeTimeout = 3 * time.Second

// detectGPUs follows the vendor fallback chain: NVIDIA via nvidia-smi, then
// AMD via rocm-smi. The NVML library is not queried. Apple/Intel GPUs are
// currently unreported. Grounded on the other_examples system handler's
// detectGPUs/getNvidiaStats/getAMDStats chain, adapted from a periodic
// stats poller to a one-shot inventory call.
func detectGPUs() []GPUInfo {
	if gpus, ok := detectNvidiaGPUs(); ok {
		return gpus
	}
	if gpus, ok := detectAMDGPUs(); ok {
		return gpus
	}
	return []GPUInfo{}
}

// detectNvidiaGPUs queries nvidia-smi and parses its CSV output. It does
// not use NVML: this module has no cgo binding to the NVML shared library,
// so a host without nvidia-smi on PATH reports no NVIDIA GPUs.
func detectNvidiaGPUs() ([]GPUInfo, bool) {
	if _, err := exec.LookPath("nvidia-smi"); err != nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), gpuProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=name,memory.total,driver_version,compute_cap",
		"--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		logging.Log.WithError(err).Warn("nvidia-smi query failed")
		return nil, false
	}

	gpus, err := parseNvidiaCSV(out)
	if err != nil {
		logging.Log.WithError(err).Warn("failed to parse nvidia-smi output")
		return nil, false
	}
	return gpus, len(gpus) > 0
}

func parseNvidiaCSV(out []byte) ([]GPUInfo, error) {
	r := csv.NewReader(bytes.NewReader(out))
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	gpus := make([]GPUInfo, 0, len(rows))
	for _, row := range rows {
		if len(row) < 4 {
			continue
		}
		vramMB, _ := strconv.ParseUint(strings.TrimSpace(row[1]), 10, 64)
		gpus = append(gpus, GPUInfo{
			Vendor:            "nvidia",
			Model:             strings.TrimSpace(row[0]),
			VRAMMB:            vramMB,
			DriverVersion:     strings.TrimSpace(row[2]),
			ComputeCapability: strings.TrimSpace(row[3]),
			Supports: GPUSupport{
				CUDA:   true,
				Vulkan: true,
				OpenCL: true,
			},
		})
	}
	return gpus, nil
}

// rocmSMIOutput mirrors the shape rocm-smi --json emits: a map from a GPU
// card key (e.g. "card0") to its reported fields.
type rocmSMIOutput map[string]rocmGPUInfo

type rocmGPUInfo struct {
	ProductName string `json:"Card series"`
	VRAMTotal   string `json:"VRAM Total Memory (B)"`
	DriverVer   string `json:"Driver version"`
}

func detectAMDGPUs() ([]GPUInfo, bool) {
	if _, err := exec.LookPath("rocm-smi"); err != nil {
		return nil, false
	}

	ctx, cancel := context.WithTimeout(context.Background(), gpuProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "rocm-smi", "--showproductname", "--showmeminfo", "vram", "--json")
	out, err := cmd.Output()
	if err != nil {
		// Absence of a working rocm-smi is not an error per the contract.
		return nil, false
	}

	var parsed rocmSMIOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		logging.Log.WithError(err).Warn("failed to parse rocm-smi output")
		return nil, false
	}

	gpus := make([]GPUInfo, 0, len(parsed))
	for _, info := range parsed {
		vramBytes, _ := strconv.ParseUint(strings.TrimSpace(info.VRAMTotal), 10, 64)
		gpus = append(gpus, GPUInfo{
			Vendor:        "amd",
			Model:         firstNonEmpty(info.ProductName, "Unknown"),
			VRAMMB:        vramBytes / (1 << 20),
			DriverVersion: firstNonEmpty(info.DriverVer, "Unknown"),
			Supports: GPUSupport{
				ROCm:   true,
				Vulkan: true,
				OpenCL: true,
			},
		})
	}
	return gpus, len(gpus) > 0
}
