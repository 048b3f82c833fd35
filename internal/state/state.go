// Package state holds the small set of shared node state: the guarded
// running-job table, connection status, and monotonic counters, read by
// the session (heartbeat counts), the executor (job table mutations) and
// the local status API (read-only snapshots). Grounded on the teacher's
// lifecycle.go guarded-map pattern, generalized from a job-recovery
// aggregate into the full shared-state object this spec calls for.
package state

import (
	"sync"
	"time"
)

// RunningJob is an entry in the guarded job table. An entry exists iff its
// job is in a non-terminal state.
type RunningJob struct {
	StartedAt       time.Time
	ContainerHandle string
	Cancelled       bool
}

// Snapshot is the read-only status view described in §3.5.
type Snapshot struct {
	Connected          bool
	OrchestratorURL    string
	CurrentJobs        int
	TotalJobsCompleted int64
	TotalEarningsCents map[string]int64
	UptimeSeconds      int64
}

// State is the node's shared mutable aggregate. All access goes through
// its methods; no interior handle (map, mutex) is ever exposed.
type State struct {
	mu sync.RWMutex

	nodeID          string
	connected       bool
	orchestratorURL string
	startedAt       time.Time

	runningJobs map[string]*RunningJob

	totalJobsCompleted int64
	earningsByCurrency map[string]int64
}

// New creates shared node state with the process start time recorded for
// uptime reporting.
func New() *State {
	return &State{
		startedAt:          time.Now(),
		runningJobs:        make(map[string]*RunningJob),
		earningsByCurrency: make(map[string]int64),
	}
}

// SetNodeID records the orchestrator-confirmed node identity, replacing any
// previously cached value (per §6.1).
func (s *State) SetNodeID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeID = id
}

func (s *State) NodeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nodeID
}

// SetConnected updates the connection flag and, when connecting, the
// orchestrator URL currently in use.
func (s *State) SetConnected(connected bool, orchestratorURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = connected
	if connected {
		s.orchestratorURL = orchestratorURL
	}
}

// InsertJob adds a job to the running-job table before Preparing begins.
func (s *State) InsertJob(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runningJobs[jobID] = &RunningJob{StartedAt: time.Now()}
}

// TryInsertJob admits a job only if the running-job table is below max,
// checking and inserting under a single lock so concurrent admission
// decisions can never overshoot max. Returns false, leaving the table
// unchanged, when the node is already at capacity.
func (s *State) TryInsertJob(jobID string, max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.runningJobs) >= max {
		return false
	}
	s.runningJobs[jobID] = &RunningJob{StartedAt: time.Now()}
	return true
}

// SetContainerHandle records the container handle once a job's container
// has started, enabling a later Cancel to kill it.
func (s *State) SetContainerHandle(jobID, handle string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.runningJobs[jobID]; ok {
		job.ContainerHandle = handle
	}
}

// MarkCancelled flags a running job as cancelled and returns its container
// handle, if any. Safe and idempotent on unknown job IDs.
func (s *State) MarkCancelled(jobID string) (handle string, found bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.runningJobs[jobID]
	if !ok {
		return "", false
	}
	job.Cancelled = true
	return job.ContainerHandle, true
}

// IsCancelled reports whether a running job has been marked cancelled.
func (s *State) IsCancelled(jobID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.runningJobs[jobID]
	return ok && job.Cancelled
}

// RemoveJob deletes a job from the running-job table on any terminal
// transition and, if it completed successfully, records the earnings.
func (s *State) RemoveJob(jobID string, completed bool, costCents int64, currency string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runningJobs, jobID)
	if completed {
		s.totalJobsCompleted++
		if currency != "" {
			s.earningsByCurrency[currency] += costCents
		}
	}
}

// CurrentJobs returns the current concurrency: the running-job table size.
func (s *State) CurrentJobs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runningJobs)
}

// Snapshot returns a read-only copy of the node's status for the local
// status API.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	earnings := make(map[string]int64, len(s.earningsByCurrency))
	for k, v := range s.earningsByCurrency {
		earnings[k] = v
	}

	var orchURL string
	if s.connected {
		orchURL = s.orchestratorURL
	}

	return Snapshot{
		Connected:          s.connected,
		OrchestratorURL:    orchURL,
		CurrentJobs:        len(s.runningJobs),
		TotalJobsCompleted: s.totalJobsCompleted,
		TotalEarningsCents: earnings,
		UptimeSeconds:      int64(time.Since(s.startedAt).Seconds()),
	}
}
