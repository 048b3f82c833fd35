package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/catalystcommunity/rhizos-node/internal/node"
)

// BenchmarkCommand runs the CLI-only CPU/memory/storage trials described
// in §4.1. GPU benchmarking is reserved and always reported absent.
var BenchmarkCommand = &cli.Command{
	Name:  "benchmark",
	Usage: "Run CPU, memory, and storage benchmarks",
	Action: func(c *cli.Context) error {
		result := node.RunBenchmarks()
		fmt.Printf("CPU score:              %.2f\n", result.CPUScore)
		fmt.Printf("Memory bandwidth (GB/s): %.2f\n", result.MemoryBandwidthGBps)
		fmt.Printf("Storage speed (MB/s):    %.2f\n", result.StorageSpeedMBps)
		if result.GPUScore != nil {
			fmt.Printf("GPU score:              %.2f\n", *result.GPUScore)
		} else {
			fmt.Println("GPU score:              n/a")
		}
		return nil
	},
}
