// -----------------------------------------------------------------------
// Run Record - Observational record of a job's progress
// -----------------------------------------------------------------------

package models

import "time"

// RunStatus is the terminal-or-running state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// StageResult records one completed stage inside a run.
type StageResult struct {
	Stage    string        `json:"stage"`
	Success  bool          `json:"success"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunRecord tracks one job's trip through the pipeline. It is owned by the
// run service and is purely observational: control flow never reads it
// back. Finished records are persisted so run history survives restarts.
type RunRecord struct {
	ID        string    `json:"id" badgerhold:"key"`
	JobRow    int       `json:"job_row" badgerhold:"index"`
	JobName   string    `json:"job_name"`
	WorkerKey string    `json:"worker_key"`
	Stage     string    `json:"stage"`  // Current stage while running; failing stage when failed
	Status    RunStatus `json:"status" badgerhold:"index"`
	Error     string    `json:"error,omitempty"`

	// Failure artifacts. Screenshot is a file path; FailureDump is a bounded
	// markdown excerpt of what the form displayed at the moment of failure.
	Screenshot  string `json:"screenshot,omitempty"`
	FailureDump string `json:"failure_dump,omitempty"`

	Stages    []StageResult `json:"stages,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at,omitempty"`
}

// Finished reports whether the run has reached a terminal status.
func (r *RunRecord) Finished() bool {
	return r.Status == RunStatusSuccess || r.Status == RunStatusFailed
}

// Duration returns the elapsed run time, using the current time while the
// run is still in flight.
func (r *RunRecord) Duration() time.Duration {
	if r.EndedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.EndedAt.Sub(r.StartedAt)
}
