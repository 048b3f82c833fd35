//go:build integration

package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestDockerEngineIntegration_FullLifecycle exercises the real Docker
// backend end to end: pull, create, wait, log collection, and removal.
// Skipped unless a daemon is reachable, same convention the teacher's
// worker integration tests used.
func TestDockerEngineIntegration_FullLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	// testcontainers-go is used here only to confirm the daemon is
	// reachable and the alpine image is pulled and runnable, independent
	// of DockerEngine itself, before exercising DockerEngine against the
	// same daemon.
	probe, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:      "alpine:latest",
			Cmd:        []string{"sh", "-c", "echo ready && sleep 30"},
			WaitingFor: wait.ForLog("ready"),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("docker daemon not available: %v", err)
	}
	defer func() { _ = probe.Terminate(ctx) }()

	engine, err := NewDockerEngine()
	require.NoError(t, err)

	require.NoError(t, engine.PullImage(ctx, "alpine:latest"))

	handle, err := engine.CreateAndStart(ctx, ContainerSpec{
		Image:       "alpine:latest",
		Command:     []string{"sh", "-c", "echo hello-from-job && exit 0"},
		MemoryBytes: 64 * 1024 * 1024,
		NanoCPUs:    5e8,
	})
	require.NoError(t, err)
	defer func() { _ = engine.Remove(ctx, handle) }()

	waitCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	exitCode, err := engine.Wait(waitCtx, handle)
	require.NoError(t, err)
	require.Equal(t, 0, exitCode)

	logs, err := engine.Logs(ctx, handle, 100)
	require.NoError(t, err)
	require.True(t, strings.Contains(logs, "hello-from-job"))
}

// TestDockerEngineIntegration_Kill confirms Kill terminates a long-running
// container before it would exit on its own.
func TestDockerEngineIntegration_Kill(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	engine, err := NewDockerEngine()
	require.NoError(t, err)

	require.NoError(t, engine.PullImage(ctx, "alpine:latest"))

	handle, err := engine.CreateAndStart(ctx, ContainerSpec{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "sleep 60"},
	})
	if err != nil {
		t.Skipf("docker daemon not available: %v", err)
	}
	defer func() { _ = engine.Remove(ctx, handle) }()

	time.Sleep(500 * time.Millisecond)
	require.NoError(t, engine.Kill(ctx, handle))

	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	exitCode, err := engine.Wait(waitCtx, handle)
	require.NoError(t, err)
	require.NotEqual(t, 0, exitCode)
}
