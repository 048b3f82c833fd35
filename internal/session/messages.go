package session

import (
	"encoding/json"

	"github.com/catalystcommunity/rhizos-node/internal/executor"
	"github.com/catalystcommunity/rhizos-node/internal/node"
)

// --- outbound (node -> orchestrator) ---

type registerMessage struct {
	Type         string            `json:"type"`
	Capabilities node.Capabilities `json:"capabilities"`
	AuthToken    *string           `json:"auth_token,omitempty"`
}

type heartbeatMessage struct {
	Type        string `json:"type"`
	Available   bool   `json:"available"`
	CurrentJobs int    `json:"current_jobs"`
}

type jobStatusMessage struct {
	Type   string `json:"type"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type jobResultMessage struct {
	Type   string          `json:"type"`
	JobID  string          `json:"job_id"`
	Result executor.Result `json:"result"`
}

const (
	statusAccepted  = "accepted"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// --- inbound (orchestrator -> node) ---

type registeredMessage struct {
	NodeID string `json:"node_id"`
}

type jobAssignmentPayload struct {
	ID             string          `json:"id"`
	ClientID       string          `json:"client_id"`
	Payload        json.RawMessage `json:"payload"`
	TimeoutSeconds int             `json:"timeout_seconds"`
	MaxCostCents   int64           `json:"max_cost_cents"`
}

type jobAssignmentMessage struct {
	Job jobAssignmentPayload `json:"job"`
}

type cancelJobMessage struct {
	JobID string `json:"job_id"`
}

type configUpdateMessage struct {
	Config json.RawMessage `json:"config"`
}

type errorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

const (
	errCodeAuthInvalid          = "auth_invalid"
	errCodeRegistrationRejected = "registration_rejected"
)

func toExecutorJob(m jobAssignmentPayload) (executor.Job, error) {
	var payload executor.Payload
	if err := json.Unmarshal(m.Payload, &payload); err != nil {
		return executor.Job{}, err
	}
	return executor.Job{
		ID:             m.ID,
		ClientID:       m.ClientID,
		Payload:        payload,
		TimeoutSeconds: m.TimeoutSeconds,
		MaxCostCents:   m.MaxCostCents,
	}, nil
}
