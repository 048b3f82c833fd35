package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/catalystcommunity/app-utils-go/logging"

	"github.com/catalystcommunity/rhizos-node/internal/metrics"
	"github.com/catalystcommunity/rhizos-node/internal/state"
)

// Config is the subset of NodeConfig the Executor consumes.
type Config struct {
	MaxConcurrentJobs int
	MaxMemoryMB       *uint64
	CPUCores          *uint32
	Currency          string
	Pricing           PricingInputs
}

// Executor runs jobs against a ContainerEngine, dispatching by payload
// type, under resource caps and deadlines, with cancellation support.
// It never returns a Go error from Execute — every outcome, including
// infrastructure failures, is encoded into a Result, per §4.3/§7.
type Executor struct {
	engine ContainerEngine
	state  *state.State
	cfg    Config
}

// New constructs an Executor bound to a single cached engine client.
func New(engine ContainerEngine, st *state.State, cfg Config) *Executor {
	return &Executor{engine: engine, state: st, cfg: cfg}
}

// IsAvailable reports whether another job can be accepted.
func (e *Executor) IsAvailable() bool {
	return e.state.CurrentJobs() < e.cfg.MaxConcurrentJobs
}

// CurrentJobCount returns the running-job table size.
func (e *Executor) CurrentJobCount() int {
	return e.state.CurrentJobs()
}

// Execute runs job to completion and always returns a Result. Admission is
// a single check-and-insert against state so concurrent Execute calls can
// never push current_jobs past max_concurrent_jobs, per §8.3.
func (e *Executor) Execute(ctx context.Context, job Job) Result {
	if !e.state.TryInsertJob(job.ID, e.cfg.MaxConcurrentJobs) {
		return Result{
			Success: false,
			Error:   "node at capacity: max_concurrent_jobs exceeded",
		}
	}

	metrics.RecordJobAccepted()
	metrics.SetJobsActive(e.state.CurrentJobs())
	start := time.Now()

	result := e.dispatch(ctx, job)
	elapsed := time.Since(start).Milliseconds()
	result.ExecutionTimeMs = elapsed

	if result.Success {
		result.ActualCostCents = CalculateCost(elapsed, e.cfg.Pricing)
	} else {
		result.ActualCostCents = 0
	}

	e.state.RemoveJob(job.ID, result.Success, result.ActualCostCents, e.cfg.Currency)
	metrics.SetJobsActive(e.state.CurrentJobs())
	metrics.RecordJobCompletion(result.Success, float64(elapsed)/1000)
	metrics.RecordEarnings(e.cfg.Currency, result.ActualCostCents)
	return result
}

// Cancel marks job as cancelled and kills its container if one exists.
// Idempotent and safe on unknown IDs, per §4.3.
func (e *Executor) Cancel(jobID string) {
	handle, found := e.state.MarkCancelled(jobID)
	if !found || handle == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.engine.Kill(ctx, handle); err != nil {
		logging.Log.WithError(err).WithField("job_id", jobID).Warn("failed to kill container on cancel")
	}
}

func (e *Executor) dispatch(ctx context.Context, job Job) Result {
	switch job.Payload.Type {
	case JobTypeDocker:
		var payload DockerPayload
		if err := json.Unmarshal(job.Payload.Raw, &payload); err != nil {
			return Result{Success: false, Error: fmt.Sprintf("invalid docker payload: %s", err)}
		}
		return e.runDocker(ctx, job, payload)
	case JobTypeLLMInference, JobTypeImageGen, JobTypeMCP:
		return Result{Success: false, Error: fmt.Sprintf("%s handler unimplemented", job.Payload.Type)}
	default:
		return Result{Success: false, Error: fmt.Sprintf("Unknown job type: %s", job.Payload.Type)}
	}
}
