package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"
)

const logTailLines = 1000

// runDocker implements the container run algorithm from §4.3: pull, build
// config, start, race exit-vs-deadline, collect logs, remove, classify.
func (e *Executor) runDocker(ctx context.Context, job Job, payload DockerPayload) Result {
	logger := logging.Log.WithField("job_id", job.ID)

	if err := e.engine.PullImage(ctx, payload.Image); err != nil {
		// Pull errors are warnings, not failures, unless container
		// creation subsequently rejects the image outright.
		logger.WithError(err).Warn("image pull failed, attempting container creation anyway")
	}

	spec := ContainerSpec{
		JobID:   job.ID,
		Name:    fmt.Sprintf("rhizos-%s", job.ID),
		Image:   payload.Image,
		Command: payload.Command,
		Env:     payload.Env,
	}
	if e.cfg.MaxMemoryMB != nil {
		spec.MemoryBytes = int64(*e.cfg.MaxMemoryMB) * (1 << 20)
	}
	if e.cfg.CPUCores != nil {
		spec.NanoCPUs = int64(*e.cfg.CPUCores) * 1_000_000_000
	}

	handle, err := e.engine.CreateAndStart(ctx, spec)
	if err != nil {
		return Result{Success: false, Error: fmt.Sprintf("failed to start container: %s", err)}
	}
	e.state.SetContainerHandle(job.ID, handle)

	timeout := time.Duration(job.TimeoutSeconds) * time.Second
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	exitCode, waitErr := e.engine.Wait(runCtx, handle)
	timedOut := runCtx.Err() == context.DeadlineExceeded

	logs, logErr := e.engine.Logs(context.Background(), handle, logTailLines)
	if logErr != nil {
		logger.WithError(logErr).Warn("failed to collect container logs")
	}

	if rmErr := e.engine.Remove(context.Background(), handle); rmErr != nil {
		logger.WithError(rmErr).Warn("failed to remove container")
	}

	if timedOut {
		_ = e.engine.Kill(context.Background(), handle)
		return Result{
			Success: false,
			Error:   fmt.Sprintf("Job timed out after %d seconds", job.TimeoutSeconds),
		}
	}

	if waitErr != nil {
		return Result{Success: false, Error: fmt.Sprintf("error waiting for container: %s", waitErr)}
	}

	if exitCode == 0 {
		return Result{
			Success: true,
			Outputs: []Output{{Type: OutputTypeInline, Data: logs, MimeType: "text/plain"}},
		}
	}

	return Result{
		Success: false,
		Error:   fmt.Sprintf("Container exited with code %d: %s", exitCode, logs),
	}
}
