package executor

import (
	"context"
	"io"
)

// ContainerSpec is the narrow set of fields the engine needs to create and
// start a container, per §6.3.
type ContainerSpec struct {
	JobID       string
	Name        string
	Image       string
	Command     []string
	Env         map[string]string
	MemoryBytes int64 // 0 means unset
	NanoCPUs    int64 // 0 means unset
}

// ContainerEngine is the port the Executor depends on. Any backend that
// implements it is acceptable; DockerEngine is the reference
// implementation. Modeled after the teacher's JobRunner interface
// (internal/worker/interfaces.go), narrowed to the operations this
// contract actually uses (no workspace bind mounts, no capability
// escalation — those are CI-build concerns this domain doesn't have).
type ContainerEngine interface {
	// PullImage ensures the image is present locally, draining the pull
	// progress stream. Pull failures are returned as errors; the caller
	// decides whether they're fatal (per §4.3 step 1).
	PullImage(ctx context.Context, ref string) error

	// CreateAndStart creates and starts a container, returning an
	// engine-specific handle used by subsequent calls.
	CreateAndStart(ctx context.Context, spec ContainerSpec) (handle string, err error)

	// Logs returns the last N lines of combined stdout+stderr, regardless
	// of whether the container is still running.
	Logs(ctx context.Context, handle string, tailLines int) (string, error)

	// Wait blocks until the container exits (or ctx is cancelled) and
	// returns its exit code.
	Wait(ctx context.Context, handle string) (exitCode int, err error)

	// Kill sends a kill signal to a running container. Safe to call on an
	// already-exited container.
	Kill(ctx context.Context, handle string) error

	// Remove deletes the container, best effort.
	Remove(ctx context.Context, handle string) error
}

// drain reads and discards a stream, used to fully consume a pull progress
// response the way the Docker SDK requires.
func drain(r io.ReadCloser) error {
	defer r.Close()
	_, err := io.Copy(io.Discard, r)
	return err
}
