// Package executor runs assigned jobs against a pluggable container engine,
// dispatching by payload kind, enforcing per-job timeouts, supporting
// cancellation, and computing cost. Grounded on the teacher's
// internal/worker job-processing pipeline (job_processor.go, lifecycle.go,
// docker_runner.go), generalized from a DB-polling CI worker to a
// push-assigned compute job runner.
package executor

import "encoding/json"

// JobType is the closed set of payload kinds the dispatch table accepts.
type JobType string

const (
	JobTypeDocker       JobType = "docker"
	JobTypeLLMInference JobType = "llm-inference"
	JobTypeImageGen     JobType = "image-gen"
	JobTypeMCP          JobType = "mcp"
)

// Payload carries the type discriminator common to every job and the raw
// type-specific fields, decoded lazily by the handler dispatch picks.
type Payload struct {
	Type JobType         `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// DockerPayload is the only handler fully implemented per §4.3.
type DockerPayload struct {
	Image   string            `json:"image"`
	Command []string          `json:"command,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Job is a unit of work handed off by the orchestrator session.
type Job struct {
	ID             string
	ClientID       string
	Payload        Payload
	TimeoutSeconds int
	MaxCostCents   int64
}

// OutputTypeInline is the only output kind this contract currently produces.
const OutputTypeInline = "inline"

// Output is a tagged result value.
type Output struct {
	Type     string `json:"type"`
	Data     string `json:"data"`
	MimeType string `json:"mime_type"`
}

// Result is the Executor's always-present return value for a job.
type Result struct {
	Success         bool     `json:"success"`
	Outputs         []Output `json:"outputs,omitempty"`
	Error           string   `json:"error,omitempty"`
	ExecutionTimeMs int64    `json:"execution_time_ms"`
	ActualCostCents int64    `json:"actual_cost_cents"`
}

// UnmarshalJSON decodes the type tag eagerly and keeps the rest of the
// object around for the dispatch handler to decode.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type JobType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return err
	}
	p.Type = tag.Type
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON re-emits the original payload bytes, or just the type tag
// if no raw bytes were captured (e.g. constructed in tests).
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return p.Raw, nil
	}
	return json.Marshal(struct {
		Type JobType `json:"type"`
	}{Type: p.Type})
}
