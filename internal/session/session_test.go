package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/catalystcommunity/rhizos-node/internal/executor"
	"github.com/catalystcommunity/rhizos-node/internal/node"
	"github.com/catalystcommunity/rhizos-node/internal/state"
)

// fakeOrchestrator is a minimal test double for the orchestrator's websocket
// endpoint, modeled on the other_examples gin websocket handler's Upgrade
// usage but driving scripted server-side behavior for assertions.
type fakeOrchestrator struct {
	upgrader websocket.Upgrader

	mu        sync.Mutex
	received  []map[string]any
	conns     []*websocket.Conn
	connCount int
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{upgrader: websocket.Upgrader{}}
}

func (f *fakeOrchestrator) recordFrame(frame map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, frame)
}

func (f *fakeOrchestrator) framesOfType(typ string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []map[string]any
	for _, fr := range f.received {
		if fr["type"] == typ {
			out = append(out, fr)
		}
	}
	return out
}

// closeConn force-closes the Nth accepted connection from the server side,
// simulating the orchestrator dropping the link out from under the node.
func (f *fakeOrchestrator) closeConn(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n < len(f.conns) {
		_ = f.conns[n].Close()
	}
}

func (f *fakeOrchestrator) handler(nodeID string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := f.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		f.mu.Lock()
		connIndex := f.connCount
		f.connCount++
		f.conns = append(f.conns, conn)
		f.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame map[string]any
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			frame["_conn"] = connIndex
			f.recordFrame(frame)

			switch frame["type"] {
			case "register":
				_ = conn.WriteJSON(map[string]any{"type": "registered", "node_id": nodeID})
			}
		}
	}
}

func testCapabilities() node.Capabilities {
	return node.Capabilities{NodeID: "test-node"}
}

func TestSessionRegistersAndTracksConnection(t *testing.T) {
	orch := newFakeOrchestrator()
	srv := httptest.NewServer(orch.handler("node-123"))
	defer srv.Close()

	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://")
	st := state.New()
	ex := executor.New(nil, st, executor.Config{MaxConcurrentJobs: 4})
	s := New(Config{OrchestratorURL: wsURL}, testCapabilities(), st, ex)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		return st.NodeID() == "node-123"
	}, 2*time.Second, 10*time.Millisecond)

	require.True(t, st.Snapshot().Connected)

	<-done
	require.False(t, st.Snapshot().Connected)
}

func TestToWebsocketURL(t *testing.T) {
	u, err := toWebsocketURL("https://orchestrator.rhizos.cloud")
	require.NoError(t, err)
	require.Equal(t, "wss://orchestrator.rhizos.cloud/ws/node", u)

	u, err = toWebsocketURL("http://localhost:8080/")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/ws/node", u)

	_, err = toWebsocketURL("ftp://nope")
	require.Error(t, err)
}

func TestJobAssignmentBeforeRegistrationIsBuffered(t *testing.T) {
	orch := newFakeOrchestrator()
	var once sync.Once

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := orch.upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame map[string]any
			_ = json.Unmarshal(data, &frame)
			orch.recordFrame(frame)

			if frame["type"] == "register" {
				once.Do(func() {
					// Send an assignment before "registered" to exercise buffering.
					_ = conn.WriteJSON(map[string]any{
						"type": "job_assignment",
						"job": map[string]any{
							"id":              "job-early",
							"client_id":       "client-1",
							"payload":         map[string]any{"type": "docker", "image": "busybox:latest"},
							"timeout_seconds": 5,
						},
					})
					time.Sleep(20 * time.Millisecond)
					_ = conn.WriteJSON(map[string]any{"type": "registered", "node_id": "node-xyz"})
				})
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://")
	st := state.New()
	ex := executor.New(&noopEngine{}, st, executor.Config{MaxConcurrentJobs: 4})
	s := New(Config{OrchestratorURL: wsURL}, testCapabilities(), st, ex)

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool {
		return st.NodeID() == "node-xyz"
	}, 2*time.Second, 10*time.Millisecond)

	// The buffered assignment is acknowledged once registration completes.
	require.Eventually(t, func() bool {
		for _, fr := range orch.framesOfType("job_status") {
			if fr["job_id"] == "job-early" && fr["status"] == "accepted" {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

// TestJobResultDeliveredOnReconnect exercises scenario 5: a job assigned on
// one connection is still running when that connection drops, and its
// job_result must be delivered on the next connection rather than crash the
// process by sending on the first connection's closed outbox.
func TestJobResultDeliveredOnReconnect(t *testing.T) {
	orch := newFakeOrchestrator()
	srv := httptest.NewServer(orch.handler("node-reconnect"))
	defer srv.Close()

	wsURL := "ws://" + strings.TrimPrefix(srv.URL, "http://")
	st := state.New()
	engine := &gatedEngine{release: make(chan struct{})}
	ex := executor.New(engine, st, executor.Config{MaxConcurrentJobs: 4})
	s := New(Config{OrchestratorURL: wsURL}, testCapabilities(), st, ex)

	ctx := context.Background()

	done1 := make(chan struct{})
	go func() {
		_, _ = s.runConnection(ctx, wsURL)
		close(done1)
	}()

	require.Eventually(t, func() bool {
		return st.NodeID() == "node-reconnect"
	}, 2*time.Second, 10*time.Millisecond)

	// Assign a job on connection 0 and wait for its synchronous accepted ack
	// to confirm the job goroutine has started before the connection drops.
	s.handleJobAssignment(ctx, jobAssignmentPayload{
		ID:             "job-reconnect",
		ClientID:       "c1",
		Payload:        json.RawMessage(`{"type":"docker","image":"busybox:latest"}`),
		TimeoutSeconds: 30,
	})
	require.Eventually(t, func() bool {
		return len(orch.framesOfType("job_status")) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// Drop connection 0 from the server side while the job is still running
	// (gatedEngine.Wait is blocked on engine.release).
	orch.closeConn(0)
	<-done1

	// No job_result should exist yet: the job hasn't finished.
	require.Empty(t, orch.framesOfType("job_result"))

	// Let the job finish now that connection 0 is gone; its result is
	// queued on the session-scoped outgoing channel, not lost.
	close(engine.release)

	ctx2, cancel2 := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel2()
	go func() { _, _ = s.runConnection(ctx2, wsURL) }()

	require.Eventually(t, func() bool {
		return len(orch.framesOfType("job_result")) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	results := orch.framesOfType("job_result")
	require.Equal(t, "job-reconnect", results[0]["job_id"])
	require.Equal(t, 1, results[0]["_conn"])
}

// gatedEngine blocks Wait until release is closed, modeling a job that is
// still running when its connection drops.
type gatedEngine struct {
	release chan struct{}
}

func (g *gatedEngine) PullImage(ctx context.Context, ref string) error { return nil }
func (g *gatedEngine) CreateAndStart(ctx context.Context, spec executor.ContainerSpec) (string, error) {
	return "h", nil
}
func (g *gatedEngine) Logs(ctx context.Context, handle string, tailLines int) (string, error) {
	return "", nil
}
func (g *gatedEngine) Wait(ctx context.Context, handle string) (int, error) {
	select {
	case <-g.release:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
func (g *gatedEngine) Kill(ctx context.Context, handle string) error { return nil }
func (g *gatedEngine) Remove(ctx context.Context, handle string) error { return nil }

// noopEngine satisfies executor.ContainerEngine for session-level tests
// where job execution itself is not under test.
type noopEngine struct{}

func (noopEngine) PullImage(ctx context.Context, ref string) error { return nil }
func (noopEngine) CreateAndStart(ctx context.Context, spec executor.ContainerSpec) (string, error) {
	return "h", nil
}
func (noopEngine) Logs(ctx context.Context, handle string, tailLines int) (string, error) {
	return "", nil
}
func (noopEngine) Wait(ctx context.Context, handle string) (int, error) { return 0, nil }
func (noopEngine) Kill(ctx context.Context, handle string) error        { return nil }
func (noopEngine) Remove(ctx context.Context, handle string) error      { return nil }
