// -----------------------------------------------------------------------
// Event payloads - Wire shapes broadcast to the dashboard
// -----------------------------------------------------------------------

package models

import "time"

// LogEntry is one buffered log line as served to the dashboard.
type LogEntry struct {
	Index     int    `json:"index"`
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// StageProgress is the payload of a stage_progress event. Dashboard
// consumers correlate to run records by job row and worker key.
type StageProgress struct {
	JobRow    int       `json:"job_row"`
	JobName   string    `json:"job_name"`
	WorkerKey string    `json:"worker_key"`
	Stage     string    `json:"stage"`
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StatusUpdate is the payload of a status_changed event.
type StatusUpdate struct {
	State     string                 `json:"state"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}
