package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/catalystcommunity/rhizos-node/internal/node"
	"github.com/catalystcommunity/rhizos-node/internal/state"
)

func TestHealthEndpoint(t *testing.T) {
	srv := New(state.New(), node.Capabilities{NodeID: "n1"}, nil, "1.2.3")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "1.2.3", body["version"])
}

func TestInfoEndpointReflectsNodeID(t *testing.T) {
	st := state.New()
	st.SetNodeID("node-abc")
	srv := New(st, node.Capabilities{NodeID: "node-abc"}, nil, "dev")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/info")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "node-abc", body["node_id"])
}

func TestStatsEndpointReportsZeroedCounters(t *testing.T) {
	srv := New(state.New(), node.Capabilities{}, nil, "dev")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, float64(0), body["current_jobs"])
	require.Equal(t, float64(0), body["total_jobs_completed"])
}

func TestPricingAcceptedButInert(t *testing.T) {
	srv := New(state.New(), node.Capabilities{}, nil, "dev")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/pricing", "application/json", strings.NewReader(`{"gpu_hour_cents":99}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, true, body["success"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv := New(state.New(), node.Capabilities{}, nil, "dev")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/health", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
