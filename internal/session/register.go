package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/catalystcommunity/rhizos-node/internal/node"
)

const registerTimeout = 15 * time.Second

// RegisterRequest is the body sent to the orchestrator's registration
// endpoint, per §6.2.
type RegisterRequest struct {
	WalletAddress string            `json:"wallet_address"`
	Capabilities  node.Capabilities `json:"capabilities"`
}

// RegisterResponse is the orchestrator's registration reply.
type RegisterResponse struct {
	NodeID    string `json:"node_id"`
	AuthToken string `json:"auth_token"`
}

// Register performs the one-shot HTTP registration call used by the
// `register` CLI subcommand, independent of the websocket session.
func Register(ctx context.Context, orchestratorURL, walletAddress string, caps node.Capabilities) (RegisterResponse, error) {
	body, err := json.Marshal(RegisterRequest{WalletAddress: walletAddress, Capabilities: caps})
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("failed to encode registration request: %w", err)
	}

	url := strings.TrimSuffix(orchestratorURL, "/") + "/api/v1/nodes/register"
	ctx, cancel := context.WithTimeout(ctx, registerTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("failed to build registration request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("registration request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("failed to read registration response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return RegisterResponse{}, fmt.Errorf("registration rejected with status %d: %s", resp.StatusCode, string(respBody))
	}

	var out RegisterResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return RegisterResponse{}, fmt.Errorf("failed to decode registration response: %w", err)
	}
	return out, nil
}
