// Package session implements the Orchestrator Session: a reconnecting
// duplex websocket control-plane client driving registration, heartbeat,
// and job lifecycle messaging, per §4.2. gorilla/websocket is declared in
// the wider dependency stack this module descends from but was never
// actually imported there; this package is the first real consumer,
// modeled on the other_examples system-stats handler's websocket framing
// (there server-side/Upgrade, here client-side/Dial) and on the teacher's
// worker.go goroutine-per-concern lifecycle shape.
package session

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/catalystcommunity/app-utils-go/logging"

	"github.com/catalystcommunity/rhizos-node/internal/executor"
	"github.com/catalystcommunity/rhizos-node/internal/metrics"
	"github.com/catalystcommunity/rhizos-node/internal/node"
	"github.com/catalystcommunity/rhizos-node/internal/state"
)

const (
	reconnectDelay      = 5 * time.Second
	heartbeatInterval   = 30 * time.Second
	registrationTimeout = 30 * time.Second
)

// Config is the subset of NodeConfig the session needs.
type Config struct {
	OrchestratorURL   string
	AuthToken         string
	MaxConcurrentJobs int
}

// Session drives the reconnecting control channel. It exposes no
// synchronous API beyond Run; all effects are observable via shared state
// and outbound frames.
type Session struct {
	cfg      Config
	caps     node.Capabilities
	state    *state.State
	executor *executor.Executor

	jobWG sync.WaitGroup

	// outgoing is the session-scoped (not connection-scoped) queue for
	// job_status/job_result frames, per design note §9: a job spawned on
	// one connection may finish after that connection has dropped, so its
	// result must outlive the connection's own outbox and be delivered on
	// whichever connection is current when it is ready. It is created once
	// and never closed; a dropped connection simply stops draining it
	// until Run dials the next one.
	outgoing chan any
}

// New constructs a Session bound to the shared state and executor it will
// drive job assignments through.
func New(cfg Config, caps node.Capabilities, st *state.State, ex *executor.Executor) *Session {
	return &Session{cfg: cfg, caps: caps, state: st, executor: ex, outgoing: make(chan any, 256)}
}

// Run drives the reconnecting session until ctx is cancelled. On shutdown,
// in-flight jobs are dropped without sending final results, per §5.
func (s *Session) Run(ctx context.Context) error {
	wsURL, err := toWebsocketURL(s.cfg.OrchestratorURL)
	if err != nil {
		return fmt.Errorf("invalid orchestrator url: %w", err)
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		fatal, err := s.runConnection(ctx, wsURL)
		if fatal {
			logging.Log.WithError(err).Error("fatal orchestrator error, exiting")
			return err
		}
		if err != nil {
			logging.Log.WithError(err).Warn("session connection lost, reconnecting")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

// toWebsocketURL substitutes https->wss and http->ws and appends
// /ws/node, per §4.2.
func toWebsocketURL(orchestratorURL string) (string, error) {
	u := orchestratorURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return "", fmt.Errorf("unsupported orchestrator url scheme: %s", orchestratorURL)
	}
	return strings.TrimSuffix(u, "/") + "/ws/node", nil
}

// runConnection owns a single websocket connection end to end: connect,
// register, multiplex inbound frames with the heartbeat tick, until an
// error or ctx cancellation. The returned bool is true iff the error is
// fatal and the agent should exit rather than reconnect.
func (s *Session) runConnection(ctx context.Context, wsURL string) (fatal bool, err error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
	}
	conn, _, err := dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to connect: %w", err)
	}
	defer conn.Close()

	s.state.SetConnected(true, s.cfg.OrchestratorURL)
	metrics.SetOrchestratorConnected(true)
	defer func() {
		s.state.SetConnected(false, "")
		metrics.SetOrchestratorConnected(false)
	}()

	outbox := make(chan any, 64)
	var writeWG sync.WaitGroup
	writeWG.Add(1)
	go func() {
		defer writeWG.Done()
		s.writeLoop(conn, outbox)
	}()
	defer func() {
		close(outbox)
		writeWG.Wait()
	}()

	var authToken *string
	if s.cfg.AuthToken != "" {
		authToken = &s.cfg.AuthToken
	}
	outbox <- registerMessage{Type: "register", Capabilities: s.caps, AuthToken: authToken}

	inbox := make(chan envelopeFrame, 16)
	readErrCh := make(chan error, 1)
	go s.readLoop(conn, inbox, readErrCh)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	registered := false
	registrationDeadline := time.NewTimer(registrationTimeout)
	defer registrationDeadline.Stop()

	var pendingAssignments []jobAssignmentPayload

	for {
		select {
		case <-ctx.Done():
			return false, nil

		case err := <-readErrCh:
			return false, err

		case <-registrationDeadline.C:
			if !registered {
				return false, fmt.Errorf("registration not received within %s", registrationTimeout)
			}

		case <-heartbeat.C:
			if !registered {
				continue
			}
			outbox <- heartbeatMessage{
				Type:        "heartbeat",
				Available:   s.executor.IsAvailable(),
				CurrentJobs: s.executor.CurrentJobCount(),
			}

		case msg := <-s.outgoing:
			// Drained only by this loop, so the send into outbox always
			// happens before the defer-close above can run on return -
			// never from a separate goroutine racing that close.
			outbox <- msg

		case frame := <-inbox:
			switch frame.Type {
			case "registered":
				var m registeredMessage
				if err := json.Unmarshal(frame.Body, &m); err != nil {
					logging.Log.WithError(err).Warn("malformed registered frame, discarding")
					continue
				}
				s.state.SetNodeID(m.NodeID)
				registered = true
				for _, pending := range pendingAssignments {
					s.handleJobAssignment(ctx, pending)
				}
				pendingAssignments = nil

			case "job_assignment":
				var m jobAssignmentMessage
				if err := json.Unmarshal(frame.Body, &m); err != nil {
					logging.Log.WithError(err).Warn("malformed job_assignment frame, discarding")
					continue
				}
				if !registered {
					pendingAssignments = append(pendingAssignments, m.Job)
					continue
				}
				s.handleJobAssignment(ctx, m.Job)

			case "cancel_job":
				var m cancelJobMessage
				if err := json.Unmarshal(frame.Body, &m); err != nil {
					logging.Log.WithError(err).Warn("malformed cancel_job frame, discarding")
					continue
				}
				s.executor.Cancel(m.JobID)

			case "config_update":
				var m configUpdateMessage
				if err := json.Unmarshal(frame.Body, &m); err != nil {
					logging.Log.WithError(err).Warn("malformed config_update frame, discarding")
					continue
				}
				logging.Log.WithField("config", string(m.Config)).Info("received config_update; reserved, logging only")

			case "error":
				var m errorMessage
				if err := json.Unmarshal(frame.Body, &m); err != nil {
					logging.Log.WithError(err).Warn("malformed error frame, discarding")
					continue
				}
				logging.Log.WithField("code", m.Code).Warn(m.Message)
				if m.Code == errCodeAuthInvalid || m.Code == errCodeRegistrationRejected {
					return true, fmt.Errorf("fatal orchestrator error %s: %s", m.Code, m.Message)
				}

			default:
				logging.Log.WithField("type", frame.Type).Warn("unknown frame type, discarding")
			}
		}
	}
}

// handleJobAssignment implements §4.2's job-assignment handling: ack
// synchronously, then run the job on its own goroutine so the session loop
// never blocks on execution. Every outbound frame for this job goes through
// the session-scoped s.outgoing queue rather than a connection-scoped
// outbox, since the job may still be running when this connection drops -
// whichever connection is current when the frame is drained is the one
// that sends it, per §4.2's reconnection guarantee.
func (s *Session) handleJobAssignment(ctx context.Context, payload jobAssignmentPayload) {
	s.outgoing <- jobStatusMessage{Type: "job_status", JobID: payload.ID, Status: statusAccepted}

	job, err := toExecutorJob(payload)
	if err != nil {
		s.outgoing <- jobResultMessage{
			Type:  "job_result",
			JobID: payload.ID,
			Result: executor.Result{
				Success: false,
				Error:   fmt.Sprintf("invalid job payload: %s", err),
			},
		}
		return
	}

	s.jobWG.Add(1)
	go func() {
		defer s.jobWG.Done()
		result := s.executor.Execute(ctx, job)
		status := statusCompleted
		if !result.Success {
			status = statusFailed
		}
		s.outgoing <- jobStatusMessage{Type: "job_status", JobID: job.ID, Status: status, Error: result.Error}
		s.outgoing <- jobResultMessage{Type: "job_result", JobID: job.ID, Result: result}
	}()
}

type envelopeFrame struct {
	Type string
	Body json.RawMessage
}

func (s *Session) readLoop(conn *websocket.Conn, inbox chan<- envelopeFrame, errCh chan<- error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			errCh <- fmt.Errorf("read error: %w", err)
			return
		}

		var tag struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &tag); err != nil {
			logging.Log.WithError(err).Warn("unparseable frame, discarding")
			continue
		}
		inbox <- envelopeFrame{Type: tag.Type, Body: data}
	}
}

// writeLoop is the single writer for this connection's write half, per
// design note §9: other goroutines route frames through outbox rather than
// touching the connection directly.
func (s *Session) writeLoop(conn *websocket.Conn, outbox <-chan any) {
	for msg := range outbox {
		if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			logging.Log.WithError(err).Warn("failed to set write deadline")
		}
		if err := conn.WriteJSON(msg); err != nil {
			logging.Log.WithError(err).Warn("failed to write frame, connection likely closed")
			return
		}
	}
}
