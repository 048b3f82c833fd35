package node

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectInvariants(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	caps, err := Detect()
	require.NoError(t, err)

	require.NotEmpty(t, caps.NodeID)
	require.GreaterOrEqual(t, caps.CPU.Threads, caps.CPU.Cores)
	require.LessOrEqual(t, caps.Memory.AvailableMB, caps.Memory.TotalMB)
	require.NotNil(t, caps.GPUs)
	for _, gpu := range caps.GPUs {
		require.NotEmpty(t, gpu.Vendor)
	}
}

func TestLoadOrCreateNodeIDPersists(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	first, err := loadOrCreateNodeID()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	second, err := loadOrCreateNodeID()
	require.NoError(t, err)
	require.Equal(t, first, second)

	path, err := nodeIDPath()
	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Clean(path))
	require.NoError(t, err)
	require.Equal(t, first, string(data))
}

func TestDedupeFeatures(t *testing.T) {
	out := dedupeFeatures([]string{"avx", "avx2", "avx", "sse4.2"})
	require.Equal(t, []string{"avx", "avx2", "sse4.2"}, out)
}

func TestParseNvidiaCSV(t *testing.T) {
	csv := []byte("RTX 4090, 24576, 550.54.15, 8.9\n")
	gpus, err := parseNvidiaCSV(csv)
	require.NoError(t, err)
	require.Len(t, gpus, 1)
	require.Equal(t, "nvidia", gpus[0].Vendor)
	require.Equal(t, uint64(24576), gpus[0].VRAMMB)
	require.True(t, gpus[0].Supports.CUDA)
}
