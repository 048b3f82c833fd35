package node

import (
	"context"
	"os/exec"
	"time"
)

const runtimeProbeTimeout = 3 * time.Second

// detectContainerRuntimes checks presence (not version) of docker, podman,
// and the NVIDIA container toolkit by invoking each tool and inspecting its
// exit status, per the probe contract.
func detectContainerRuntimes() ContainerRuntimes {
	return ContainerRuntimes{
		Docker:                 toolSucceeds("docker", "info"),
		Podman:                 toolSucceeds("podman", "--version"),
		NvidiaContainerToolkit: toolSucceeds("nvidia-container-cli", "--version"),
	}
}

func toolSucceeds(name string, args ...string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), runtimeProbeTimeout)
	defer cancel()
	return exec.CommandContext(ctx, name, args...).Run() == nil
}
