// Package api implements the local, read-only status surface described in
// §6.4: a loopback-bound HTTP API giving a human or sidecar process a view
// onto the shared node state without going through the orchestrator.
// Grounded on the teacher's hand-rolled http.ServeMux router
// (internal/handlers/router.go) and JSON response helper
// (internal/handlers/base_handler.go), trimmed from a multi-tenant,
// auth-gated API surface down to a handful of unauthenticated GETs plus
// one accepted-but-inert POST, since this API binds to 127.0.0.1 only.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/cors"

	"github.com/catalystcommunity/app-utils-go/logging"

	"github.com/catalystcommunity/rhizos-node/internal/metrics"
	"github.com/catalystcommunity/rhizos-node/internal/node"
	"github.com/catalystcommunity/rhizos-node/internal/state"
)

// Server serves the local status API described in §6.4.
type Server struct {
	state   *state.State
	caps    node.Capabilities
	monitor *node.ResourceMonitor
	version string
}

// New constructs a status API server bound to the node's shared state and
// immutable capability snapshot.
func New(st *state.State, caps node.Capabilities, monitor *node.ResourceMonitor, version string) *Server {
	return &Server{state: st, caps: caps, monitor: monitor, version: version}
}

// Handler builds the ServeMux for this API, the way the teacher's
// createAppMux does, wrapped in a permissive CORS handler per the
// teacher's cmd/api.go NewRouter (kept permissive since the surface is
// loopback-only by default, per §6.4/§7.2).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/info", s.handleInfo)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/capabilities", s.handleCapabilities)
	mux.HandleFunc("/pricing", s.handlePricing)
	mux.Handle("/metrics", metrics.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(mux)
}

// ListenAndServe binds to 127.0.0.1:port and serves until the process
// exits or the listener errors, mirroring the teacher's cmd/api.go Serve.
func (s *Server) ListenAndServe(port int) error {
	addr := fmt.Sprintf("127.0.0.1:%d", port)
	logging.Log.WithField("addr", addr).Info("starting local status API")
	return http.ListenAndServe(addr, s.Handler()) //nolint:gosec // loopback-only, no external timeout requirement
}

func respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Log.WithError(err).Warn("failed to encode status API response")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": s.version,
	})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"node_id":      s.state.NodeID(),
		"version":      s.version,
		"capabilities": s.caps,
		"status":       s.state.Snapshot(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.state.Snapshot()
	var totalEarningsCents int64
	for _, cents := range snap.TotalEarningsCents {
		totalEarningsCents += cents
	}
	body := map[string]any{
		"current_jobs":         snap.CurrentJobs,
		"total_jobs_completed": snap.TotalJobsCompleted,
		"total_earnings_cents": totalEarningsCents,
		"earnings_by_currency": snap.TotalEarningsCents,
		"uptime_seconds":       snap.UptimeSeconds,
	}
	if s.monitor != nil {
		body["host"] = s.monitor.Snapshot()
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	respondJSON(w, http.StatusOK, s.caps)
}

// handlePricing accepts a pricing update body and acknowledges it without
// applying it, per §9's open question: the source stubs this the same way.
func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "invalid request body"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "pricing update accepted; not yet effective",
	})
}
