package schedule

import (
	"sync"
	"time"
)

// Status describes the most recent relay run.
type Status struct {
	Running      bool      `json:"running"`
	LastRunID    string    `json:"last_run_id,omitempty"`
	LastStarted  time.Time `json:"last_started,omitzero"`
	LastDuration string    `json:"last_duration,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	LastSuccess  time.Time `json:"last_success,omitzero"`
	Runs         int       `json:"runs"`
	Failures     int       `json:"failures"`
}

// Healthy reports whether the last finished run succeeded. A process that has
// not run yet is healthy.
func (s Status) Healthy() bool {
	return s.LastError == ""
}

// Tracker accumulates run outcomes. It is safe for concurrent use.
type Tracker struct {
	mu     sync.RWMutex
	status Status
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Begin marks a run as in progress.
func (t *Tracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Running = true
}

// Finish records a run's outcome.
func (t *Tracker) Finish(runID string, started time.Time, duration time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Running = false
	t.status.Runs++
	t.status.LastRunID = runID
	t.status.LastStarted = started
	t.status.LastDuration = duration.String()
	if err != nil {
		t.status.Failures++
		t.status.LastError = err.Error()
		return
	}
	t.status.LastError = ""
	t.status.LastSuccess = started.Add(duration)
}

// Snapshot returns a copy of the current status.
func (t *Tracker) Snapshot() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}
