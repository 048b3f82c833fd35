package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/catalystcommunity/rhizos-node/internal/state"
)

// fakeEngine is an in-memory ContainerEngine used to test timeout,
// cancellation, and dispatch without a real container runtime, exactly as
// the port design note (§9) calls for.
type fakeEngine struct {
	exitCode   int
	runFor     time.Duration
	logs       string
	killed     bool
	pullErr    error
	createErr  error
}

func (f *fakeEngine) PullImage(ctx context.Context, ref string) error { return f.pullErr }

func (f *fakeEngine) CreateAndStart(ctx context.Context, spec ContainerSpec) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	return "fake-handle", nil
}

func (f *fakeEngine) Logs(ctx context.Context, handle string, tailLines int) (string, error) {
	return f.logs, nil
}

func (f *fakeEngine) Wait(ctx context.Context, handle string) (int, error) {
	select {
	case <-time.After(f.runFor):
		return f.exitCode, nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

func (f *fakeEngine) Kill(ctx context.Context, handle string) error {
	f.killed = true
	return nil
}

func (f *fakeEngine) Remove(ctx context.Context, handle string) error { return nil }

func dockerJob(t *testing.T, id string, timeoutSeconds int, image string, command []string) Job {
	t.Helper()
	raw, err := json.Marshal(struct {
		Type    JobType  `json:"type"`
		Image   string   `json:"image"`
		Command []string `json:"command,omitempty"`
	}{Type: JobTypeDocker, Image: image, Command: command})
	require.NoError(t, err)

	return Job{
		ID:             id,
		Payload:        Payload{Type: JobTypeDocker, Raw: raw},
		TimeoutSeconds: timeoutSeconds,
	}
}

func newTestExecutor(engine ContainerEngine, maxConcurrent int) *Executor {
	return New(engine, state.New(), Config{
		MaxConcurrentJobs: maxConcurrent,
		Pricing: PricingInputs{
			CPUCoreHourCents: 6,
			MinimumCents:     10,
		},
	})
}

func TestHappyContainerJob(t *testing.T) {
	eng := &fakeEngine{exitCode: 0, logs: "hi\n"}
	ex := newTestExecutor(eng, 4)

	result := ex.Execute(context.Background(), dockerJob(t, "j1", 30, "busybox:latest", []string{"echo", "hi"}))

	require.True(t, result.Success)
	require.Equal(t, "hi\n", result.Outputs[0].Data)
	require.Equal(t, int64(10), result.ActualCostCents) // floored at minimum_cents
	require.Equal(t, 0, ex.CurrentJobCount())
}

func TestTimeout(t *testing.T) {
	eng := &fakeEngine{exitCode: 0, runFor: 5 * time.Second}
	ex := newTestExecutor(eng, 4)

	start := time.Now()
	result := ex.Execute(context.Background(), dockerJob(t, "j2", 1, "busybox:latest", []string{"sleep", "60"}))
	elapsed := time.Since(start)

	require.False(t, result.Success)
	require.Contains(t, result.Error, "timed out after 1 seconds")
	require.Equal(t, int64(0), result.ActualCostCents)
	require.Less(t, elapsed, 3*time.Second)
	require.True(t, eng.killed)
}

func TestUnknownPayloadType(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, 4)

	job := Job{ID: "j4", Payload: Payload{Type: "quantum", Raw: []byte(`{"type":"quantum"}`)}, TimeoutSeconds: 10}
	result := ex.Execute(context.Background(), job)

	require.False(t, result.Success)
	require.Equal(t, "Unknown job type: quantum", result.Error)
	require.Equal(t, int64(0), result.ActualCostCents)
}

func TestReservedHandlersUnimplemented(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, 4)

	job := Job{ID: "j6", Payload: Payload{Type: JobTypeLLMInference, Raw: []byte(`{"type":"llm-inference"}`)}, TimeoutSeconds: 10}
	result := ex.Execute(context.Background(), job)

	require.False(t, result.Success)
	require.Contains(t, result.Error, "unimplemented")
}

func TestCapacityExceeded(t *testing.T) {
	eng := &fakeEngine{runFor: 2 * time.Second}
	ex := newTestExecutor(eng, 1)

	done := make(chan Result, 1)
	go func() {
		done <- ex.Execute(context.Background(), dockerJob(t, "j7a", 10, "busybox:latest", []string{"sleep", "1"}))
	}()

	// Give the first job time to register in the running-job table.
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, ex.CurrentJobCount())

	overflow := ex.Execute(context.Background(), dockerJob(t, "j7b", 10, "busybox:latest", []string{"echo", "hi"}))
	require.False(t, overflow.Success)
	require.Contains(t, overflow.Error, "capacity")
	require.Equal(t, 1, ex.CurrentJobCount())

	<-done
}

func TestCancelIdempotentOnUnknownJob(t *testing.T) {
	eng := &fakeEngine{}
	ex := newTestExecutor(eng, 4)
	ex.Cancel("never-existed")
	ex.Cancel("never-existed")
	require.False(t, eng.killed)
}

func TestCostFloorsAtMinimum(t *testing.T) {
	cents := CalculateCost(1, PricingInputs{CPUCoreHourCents: 6, MinimumCents: 10})
	require.Equal(t, int64(10), cents)
}

func TestCostScalesWithCores(t *testing.T) {
	cores := uint32(4)
	cents := CalculateCost(3_600_000, PricingInputs{CPUCoreHourCents: 6, MinimumCents: 10, CPUCoresLimit: &cores})
	require.Equal(t, int64(24), cents)
}
